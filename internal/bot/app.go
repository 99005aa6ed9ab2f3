
package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/unknownwarrior911/course-sales-bot/internal/adminauth"
	"github.com/unknownwarrior911/course-sales-bot/internal/config"
	"github.com/unknownwarrior911/course-sales-bot/internal/db"
	"github.com/unknownwarrior911/course-sales-bot/internal/gate"
	"github.com/unknownwarrior911/course-sales-bot/internal/membership"
	"github.com/unknownwarrior911/course-sales-bot/internal/textgen"
)

type Awaiting string

const (
	AwaitNone Awaiting = ""

	AwaitAuthCode   Awaiting = "auth_code"
	AwaitAuthAnswer Awaiting = "auth_answer"

	AwaitChannelID       Awaiting = "fj_channel_id"
	AwaitChannelUsername Awaiting = "fj_channel_username"
	AwaitChannelTitle    Awaiting = "fj_channel_title"

	AwaitBroadcastText Awaiting = "broadcast_text"
)

type Session struct {
	Await Awaiting

	// Pending force-join channel being added
	PendingChannelID int64
	PendingUsername  string
	PendingTitle     string
}

type App struct {
	cfg config.Config
	db  *db.DB

	bot *tgbotapi.BotAPI

	gate     *gate.Gate
	auth     *adminauth.Manager
	captions *textgen.Client

	sessMu sync.Mutex
	sess   map[int64]*Session // by user id

	// Data dir
	dataDir string
	dbPath  string
}

func New(cfg config.Config) (*App, error) {
	dataDir := cfg.DataDir
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dataDir, "bot.db")
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	// Seed from config file
	if err := database.SeedFromConfig(context.Background(), cfg.InitialAdminIDs); err != nil {
		_ = database.Close()
		return nil, err
	}

	b, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	b.Debug = cfg.Debug

	oracle := membership.NewChatMemberOracle(b, time.Duration(cfg.MembershipTimeoutSeconds)*time.Second)

	app := &App{
		cfg:      cfg,
		db:       database,
		bot:      b,
		gate:     gate.New(database, oracle),
		auth:     adminauth.NewManager(cfg.AdminAuthCode, cfg.AdminAuthAnswer, time.Duration(cfg.SessionTimeoutMinutes)*time.Minute),
		captions: textgen.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL),
		sess:     map[int64]*Session{},
		dataDir:  dataDir,
		dbPath:   dbPath,
	}
	return app, nil
}

func (a *App) Close() {
	_ = a.db.Close()
}

// updateWorkers bounds concurrent update handling. Updates are routed to a
// lane by user id, so one user's slow membership checks do not stall other
// users while each user's own updates stay in order.
const updateWorkers = 8

// Run consumes updates until ctx is cancelled and the update channel drains.
func (a *App) Run(ctx context.Context) error {
	log.Printf("Bot authorized as @%s", a.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := a.bot.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		log.Printf("Shutting down...")
		a.bot.StopReceivingUpdates()
	}()

	lanes := make([]chan tgbotapi.Update, updateWorkers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan tgbotapi.Update, 16)
		wg.Add(1)
		go func(lane chan tgbotapi.Update) {
			defer wg.Done()
			for upd := range lane {
				a.handleUpdate(upd)
			}
		}(lanes[i])
	}

	for upd := range updates {
		lanes[laneFor(updateUserID(upd))] <- upd
	}
	for _, lane := range lanes {
		close(lane)
	}
	wg.Wait()
	return nil
}

func updateUserID(upd tgbotapi.Update) int64 {
	if upd.Message != nil && upd.Message.From != nil {
		return upd.Message.From.ID
	}
	if upd.CallbackQuery != nil && upd.CallbackQuery.From != nil {
		return upd.CallbackQuery.From.ID
	}
	return 0
}

func laneFor(userID int64) int {
	if userID < 0 {
		userID = -userID
	}
	return int(userID % updateWorkers)
}

func (a *App) handleUpdate(upd tgbotapi.Update) {
	if upd.Message != nil {
		a.handleMessage(*upd.Message)
		return
	}
	if upd.CallbackQuery != nil {
		a.handleCallback(*upd.CallbackQuery)
		return
	}
}

func (a *App) ensureSession(userID int64) *Session {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	s, ok := a.sess[userID]
	if !ok {
		s = &Session{}
		a.sess[userID] = s
	}
	return s
}

func (a *App) clearAwait(userID int64) {
	a.sessMu.Lock()
	defer a.sessMu.Unlock()
	if s, ok := a.sess[userID]; ok {
		s.Await = AwaitNone
		s.PendingChannelID = 0
		s.PendingUsername = ""
		s.PendingTitle = ""
	}
}

func (a *App) handleMessage(msg tgbotapi.Message) {
	// Only private chats; the bot has no business in groups.
	if msg.Chat == nil || msg.Chat.Type != "private" || msg.From == nil {
		return
	}

	userID := msg.From.ID
	ctx := context.Background()

	if err := a.db.UpsertUser(ctx, userID, msg.From.UserName, msg.From.FirstName); err != nil {
		log.Printf("[bot] upsert user %d: %v", userID, err)
	}
	if banned, _ := a.db.IsUserBanned(ctx, userID); banned {
		return
	}

	isAdmin, err := a.db.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("[bot] admin lookup %d: %v", userID, err)
	}

	sess := a.ensureSession(userID)

	// Input flows take precedence over commands except /cancel.
	if sess.Await != AwaitNone && !(msg.IsCommand() && msg.Command() == "cancel") {
		a.handleAwait(ctx, msg, sess, isAdmin)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			if !a.passGate(ctx, userID) {
				return
			}
			a.sendMainMenu(userID, 0, msg.From.FirstName)
		case "help":
			if !a.passGate(ctx, userID) {
				return
			}
			a.send(userID, helpText)
		case "admin":
			a.openAdmin(ctx, userID, 0)
		case "caption":
			a.handleCaptionCommand(ctx, msg, isAdmin)
		case "ban":
			a.handleBanCommand(ctx, msg, isAdmin, true)
		case "unban":
			a.handleBanCommand(ctx, msg, isAdmin, false)
		case "cancel":
			a.clearAwait(userID)
			a.auth.Cancel(userID)
			a.send(userID, "Cancelled.")
		default:
			if !a.passGate(ctx, userID) {
				return
			}
			a.send(userID, "Unknown command. Send /help for the list of commands.")
		}
		return
	}

	// Plain text outside any flow: show the menu (gated).
	if !a.passGate(ctx, userID) {
		return
	}
	a.sendMainMenu(userID, 0, msg.From.FirstName)
}

// passGate runs the force-join gate and renders the join prompt when the
// user is blocked. Returns true when the interaction may proceed.
func (a *App) passGate(ctx context.Context, userID int64) bool {
	dec := a.gate.Authorize(ctx, userID)
	if dec.Allowed {
		return true
	}
	a.sendJoinPrompt(userID, 0, dec.Missing)
	return false
}

func (a *App) handleAwait(ctx context.Context, msg tgbotapi.Message, sess *Session, isAdmin bool) {
	userID := msg.From.ID

	// Every awaiting flow is admin-only; a revoked admin loses it mid-flight.
	if !isAdmin {
		a.clearAwait(userID)
		a.send(userID, "⛔️ Access denied.")
		return
	}

	switch sess.Await {
	case AwaitAuthCode:
		a.onAuthCode(userID, msg.Text)
	case AwaitAuthAnswer:
		a.onAuthAnswer(userID, msg.Text)
	case AwaitChannelID:
		a.onChannelIDInput(ctx, userID, sess, msg.Text)
	case AwaitChannelUsername:
		a.onChannelUsernameInput(userID, sess, msg.Text)
	case AwaitChannelTitle:
		a.onChannelTitleInput(userID, sess, msg.Text)
	case AwaitBroadcastText:
		a.onBroadcastText(ctx, userID, msg.Text)
	default:
		a.clearAwait(userID)
	}
}

// ---- admin auth flow ----

// openAdmin is the dashboard entry point: database admin check first, then
// the session check, then the two-step challenge.
func (a *App) openAdmin(ctx context.Context, userID int64, msgID int) {
	isAdmin, err := a.db.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("[bot] admin lookup %d: %v", userID, err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}
	if !isAdmin {
		a.send(userID, "⛔️ Access denied: not authorized.")
		return
	}
	if a.auth.IsAuthenticated(userID) {
		a.sendDashboard(ctx, userID, msgID)
		return
	}

	a.auth.Begin(userID)
	a.ensureSession(userID).Await = AwaitAuthCode

	text := "🔐 Admin authentication\n\nStep 1 of 2: send the security code."
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "auth_cancel"),
		),
	)
	a.editOrSendMenu(userID, msgID, text, kb)
}

func (a *App) onAuthCode(userID int64, input string) {
	res, remaining := a.auth.SubmitCode(userID, input)
	switch res {
	case adminauth.ResultNext:
		a.ensureSession(userID).Await = AwaitAuthAnswer
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "auth_cancel"),
			),
		)
		a.sendWithKeyboard(userID, "✅ Code verified.\n\nStep 2 of 2: what is your name? (lowercase)", kb)
	case adminauth.ResultRetry:
		a.send(userID, fmt.Sprintf("❌ Incorrect code. Attempts remaining: %d", remaining))
	case adminauth.ResultLocked:
		a.clearAwait(userID)
		a.send(userID, "🚫 Maximum attempts exceeded. Authentication cancelled; send /admin to start over.")
	default:
		a.clearAwait(userID)
		a.send(userID, "Session expired. Send /admin to start again.")
	}
}

func (a *App) onAuthAnswer(userID int64, input string) {
	res, remaining := a.auth.SubmitAnswer(userID, input)
	switch res {
	case adminauth.ResultAuthed:
		a.clearAwait(userID)
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👑 Open Admin Dashboard", "admin"),
			),
		)
		a.sendWithKeyboard(userID, fmt.Sprintf("✅ Authentication successful.\n\nSession valid for %d minutes of inactivity.", a.cfg.SessionTimeoutMinutes), kb)
	case adminauth.ResultRetry:
		a.send(userID, fmt.Sprintf("❌ Incorrect answer. Attempts remaining: %d", remaining))
	case adminauth.ResultLocked:
		a.clearAwait(userID)
		a.send(userID, "🚫 Maximum attempts exceeded. Authentication cancelled; send /admin to start over.")
	default:
		a.clearAwait(userID)
		a.send(userID, "Session expired. Send /admin to start again.")
	}
}

// requireAdminSession checks the database flag and the live session. On an
// expired session it transparently restarts the challenge instead of
// surfacing an error.
func (a *App) requireAdminSession(ctx context.Context, userID int64, msgID int) bool {
	isAdmin, err := a.db.IsAdmin(ctx, userID)
	if err != nil || !isAdmin {
		a.send(userID, "⛔️ Access denied: not authorized.")
		return false
	}
	if a.auth.IsAuthenticated(userID) {
		return true
	}
	a.send(userID, "🔐 Session expired, please re-authenticate.")
	a.openAdmin(ctx, userID, msgID)
	return false
}

// ---- callbacks ----

// acksBeforeDispatch reports whether handleCallback should answer the query
// with an empty ack before dispatching. Telegram accepts exactly one answer
// per query id, and the verify action needs that answer for its
// still-blocked alert, so it acks on its own.
func acksBeforeDispatch(k actionKind) bool {
	return k != actionVerifyJoin
}

func (a *App) answerCallback(id, text string, alert bool) {
	cb := tgbotapi.NewCallback(id, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(id, text)
	}
	if _, err := a.bot.Request(cb); err != nil {
		log.Printf("[bot] answer callback: %v", err)
	}
}

func (a *App) handleCallback(q tgbotapi.CallbackQuery) {
	if q.From == nil {
		return
	}
	userID := q.From.ID
	ctx := context.Background()

	if banned, _ := a.db.IsUserBanned(ctx, userID); banned {
		a.answerCallback(q.ID, "", false)
		return
	}

	act, ok := parseCallback(q.Data)
	if !ok {
		log.Printf("[bot] unknown callback %q from %d", q.Data, userID)
		a.answerCallback(q.ID, "", false)
		return
	}
	if acksBeforeDispatch(act.kind) {
		a.answerCallback(q.ID, "", false)
	}

	msgID := 0
	if q.Message != nil {
		msgID = q.Message.MessageID
	}

	switch act.kind {
	case actionNoop:
		return
	case actionVerifyJoin:
		a.onVerifyCallback(ctx, q, msgID)
	case actionMainMenu:
		if !a.passGate(ctx, userID) {
			return
		}
		a.sendMainMenu(userID, msgID, q.From.FirstName)
	case actionAdminDashboard:
		a.openAdmin(ctx, userID, msgID)
	case actionAuthCancel:
		a.auth.Cancel(userID)
		a.clearAwait(userID)
		a.editOrSendText(userID, msgID, "❌ Authentication cancelled.")
	case actionAdminLogout:
		a.auth.Logout(userID)
		a.clearAwait(userID)
		a.editOrSendText(userID, msgID, "🚪 Logged out. Send /admin to re-authenticate.")
	case actionFJMenu:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.sendForceJoinMenu(ctx, userID, msgID)
	case actionFJAdd:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.startAddChannel(userID)
	case actionFJRemove:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.sendRemoveChannelMenu(ctx, userID, msgID)
	case actionFJDelete:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		if err := a.db.RemoveForceJoinChannel(ctx, act.channelID); err != nil {
			log.Printf("[bot] remove channel %d: %v", act.channelID, err)
		}
		a.sendForceJoinMenu(ctx, userID, msgID)
	case actionFJToggle:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		if ch, found, err := a.db.GetForceJoinChannel(ctx, act.channelID); err == nil && found {
			_ = a.db.SetForceJoinActive(ctx, act.channelID, !ch.Active)
		}
		a.sendForceJoinMenu(ctx, userID, msgID)
	case actionFJConfirm:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.confirmAddChannel(ctx, userID, msgID)
	case actionBroadcastNew:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.ensureSession(userID).Await = AwaitBroadcastText
		a.send(userID, "📣 Send the broadcast text now, or /cancel.")
	case actionBroadcastHistory:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.sendBroadcastHistory(ctx, userID, msgID)
	case actionBackup:
		if !a.requireAdminSession(ctx, userID, msgID) {
			return
		}
		a.sendBackup(ctx, userID)
	}
}

func (a *App) onVerifyCallback(ctx context.Context, q tgbotapi.CallbackQuery, msgID int) {
	userID := q.From.ID
	dec := a.gate.HandleVerify(ctx, userID)
	if dec.Allowed {
		a.answerCallback(q.ID, "", false)
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🏠 Main Menu", "menu"),
			),
		)
		a.editOrSendMenu(userID, msgID, "✅ Verification successful!\n\nWelcome, you now have full access.", kb)
		return
	}
	// Still missing channels: raise the alert and re-render the prompt with
	// the remaining set.
	a.answerCallback(q.ID, "❌ You haven't joined all channels yet!", true)
	a.sendJoinPrompt(userID, msgID, dec.Missing)
}

// ---- force-join channel manager ----

func (a *App) sendForceJoinMenu(ctx context.Context, userID int64, msgID int) {
	channels, err := a.db.ListForceJoinChannels(ctx)
	if err != nil {
		log.Printf("[bot] list channels: %v", err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}

	var b strings.Builder
	b.WriteString("🚪 Force Join Channels\n\n")
	if len(channels) == 0 {
		b.WriteString("No channels configured; the gate is open.\n")
	} else {
		b.WriteString("Tap a channel to enable/disable it:\n")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		mark := "⛔️"
		if ch.Active {
			mark = "✅"
		}
		label := fmt.Sprintf("%s @%s — %s", mark, ch.Username, truncate(ch.Title, 24))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fjToggleData(ch.ChannelID)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add Channel", "fj_add"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Remove Channel", "fj_remove"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Admin", "admin"),
		),
	)

	a.editOrSendMenu(userID, msgID, b.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (a *App) startAddChannel(userID int64) {
	s := a.ensureSession(userID)
	s.Await = AwaitChannelID
	s.PendingChannelID = 0
	s.PendingUsername = ""
	s.PendingTitle = ""
	a.send(userID, "➕ Add force-join channel\n\nStep 1/3: send the channel ID (a negative number like -1001234567890).\n\nThe bot must be an admin of the channel. Send /cancel to abort.")
}

func (a *App) onChannelIDInput(ctx context.Context, userID int64, sess *Session, text string) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		a.send(userID, "❌ Invalid channel ID. It must be a number like -1001234567890. Try again:")
		return
	}
	if !strings.HasPrefix(strconv.FormatInt(id, 10), "-100") {
		a.send(userID, "⚠️ Channel ID looks wrong: it should start with -100. Try again:")
		return
	}
	if ch, found, err := a.db.GetForceJoinChannel(ctx, id); err == nil && found && ch.Active {
		a.clearAwait(userID)
		a.send(userID, "✅ This channel is already in the force-join list.")
		return
	}

	sess.PendingChannelID = id
	sess.Await = AwaitChannelUsername
	a.send(userID, "Step 2/3: send the channel username (with or without @).\n\nIt must be a public channel anyone can join by username.")
}

func (a *App) onChannelUsernameInput(userID int64, sess *Session, text string) {
	username := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(text), "@"))
	if len(username) < 3 {
		a.send(userID, "❌ Invalid username, must be at least 3 characters. Try again:")
		return
	}
	sess.PendingUsername = username
	sess.Await = AwaitChannelTitle
	a.send(userID, "Step 3/3: send a short display title for the channel (3–100 characters).")
}

func (a *App) onChannelTitleInput(userID int64, sess *Session, text string) {
	title := strings.TrimSpace(text)
	if len([]rune(title)) < 3 {
		a.send(userID, "❌ Title too short (minimum 3 characters). Try again:")
		return
	}
	if len([]rune(title)) > 100 {
		a.send(userID, "❌ Title too long (maximum 100 characters). Try again:")
		return
	}
	sess.PendingTitle = title
	sess.Await = AwaitNone

	msg := fmt.Sprintf("Confirm channel details:\n\n🆔 %d\n👤 @%s\n📌 %s\n\nMake sure the bot is an admin of the channel and the channel is public.",
		sess.PendingChannelID, sess.PendingUsername, title)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm & Add", "fj_confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "fj"),
		),
	)
	a.sendWithKeyboard(userID, msg, kb)
}

func (a *App) confirmAddChannel(ctx context.Context, userID int64, msgID int) {
	a.sessMu.Lock()
	sess, ok := a.sess[userID]
	var id int64
	var username, title string
	if ok {
		id, username, title = sess.PendingChannelID, sess.PendingUsername, sess.PendingTitle
	}
	a.sessMu.Unlock()

	if id == 0 || username == "" || title == "" {
		a.editOrSendText(userID, msgID, "❌ Missing data, please start again from the Force Join menu.")
		return
	}
	if err := a.db.AddForceJoinChannel(ctx, id, title, username); err != nil {
		log.Printf("[bot] add channel %d: %v", id, err)
		a.editOrSendText(userID, msgID, "❌ Could not add the channel, please try again.")
		return
	}
	a.clearAwait(userID)
	log.Printf("[bot] force-join channel @%s (%d) added by %d", username, id, userID)
	a.sendForceJoinMenu(ctx, userID, msgID)
}

func (a *App) sendRemoveChannelMenu(ctx context.Context, userID int64, msgID int) {
	channels, err := a.db.ListForceJoinChannels(ctx)
	if err != nil {
		log.Printf("[bot] list channels: %v", err)
		return
	}
	if len(channels) == 0 {
		a.editOrSendText(userID, msgID, "📭 No force-join channels to remove.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ch := range channels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ @%s (%s)", ch.Username, truncate(ch.Title, 20)), fjDeleteData(ch.ChannelID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Cancel", "fj"),
	))

	a.editOrSendMenu(userID, msgID, "❌ Select a channel to remove:", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// ---- user moderation ----

// parseBanTarget extracts the numeric user id from the command argument.
func parseBanTarget(args string) (int64, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, fmt.Errorf("missing user id")
	}
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", args)
	}
	return id, nil
}

func (a *App) handleBanCommand(ctx context.Context, msg tgbotapi.Message, isAdmin, ban bool) {
	userID := msg.From.ID
	if !isAdmin {
		a.send(userID, "⛔️ Access denied: not authorized.")
		return
	}
	if !a.auth.IsAuthenticated(userID) {
		a.send(userID, "🔐 Session expired, please re-authenticate.")
		a.openAdmin(ctx, userID, 0)
		return
	}

	target, err := parseBanTarget(msg.CommandArguments())
	if err != nil {
		verb := "ban"
		if !ban {
			verb = "unban"
		}
		a.send(userID, fmt.Sprintf("Usage: /%s <user id>", verb))
		return
	}
	if ban {
		if targetAdmin, _ := a.db.IsAdmin(ctx, target); targetAdmin {
			a.send(userID, "❌ Admins cannot be banned.")
			return
		}
	}
	if err := a.db.SetUserBanned(ctx, target, ban); err != nil {
		log.Printf("[bot] set banned=%v for %d: %v", ban, target, err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}
	log.Printf("[bot] user %d banned=%v by admin %d", target, ban, userID)
	if ban {
		a.send(userID, fmt.Sprintf("🚫 User %d banned.", target))
	} else {
		a.send(userID, fmt.Sprintf("✅ User %d unbanned.", target))
	}
}

// ---- caption generator ----

func (a *App) handleCaptionCommand(ctx context.Context, msg tgbotapi.Message, isAdmin bool) {
	userID := msg.From.ID
	if !isAdmin {
		a.send(userID, "⛔️ Access denied: not authorized.")
		return
	}
	if !a.auth.IsAuthenticated(userID) {
		a.send(userID, "🔐 Session expired, please re-authenticate.")
		a.openAdmin(ctx, userID, 0)
		return
	}
	prompt := strings.TrimSpace(msg.CommandArguments())
	if prompt == "" {
		a.send(userID, "Usage: /caption <what to write about>\n\nExample: /caption promo for the new Python course, 40% off this week")
		return
	}
	if !a.captions.Enabled() {
		a.send(userID, "🤖 Caption generation is not configured (no API key).")
		return
	}

	a.send(userID, "⏳ Generating...")
	cctx, cancel := context.WithTimeout(ctx, 35*time.Second)
	defer cancel()
	text, err := a.captions.Complete(cctx, prompt)
	if err != nil {
		log.Printf("[bot] caption generation for %d: %v", userID, err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}
	a.send(userID, text)
}

// ---- menus / rendering ----

const helpText = `❓ Help

/start — main menu
/help — this message
/admin — admin panel (authorized users only)

All features unlock after you join the required channels.`

func (a *App) sendMainMenu(userID int64, msgID int, firstName string) {
	name := firstName
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hello %s!\n\nWelcome to the course store. Pick an option:", name)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Courses", "noop"),
			tgbotapi.NewInlineKeyboardButtonData("❓ Help", "noop"),
		),
	)
	a.editOrSendMenu(userID, msgID, text, kb)
}

func (a *App) sendDashboard(ctx context.Context, userID int64, msgID int) {
	userCount, _ := a.db.CountUsers(ctx)
	admins, _ := a.db.ListAdmins(ctx)
	channels, _ := a.db.ActiveForceJoinChannels(ctx)

	text := fmt.Sprintf("👑 Admin Dashboard\n\n👥 Users: %d\n🛡 Admins: %d\n🚪 Active force-join channels: %d",
		userCount, len(admins), len(channels))

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Force Join", "fj"),
			tgbotapi.NewInlineKeyboardButtonData("📣 Broadcast", "bc_new"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗂 Broadcast History", "bc_history"),
			tgbotapi.NewInlineKeyboardButtonData("🛟 Backup", "backup"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚪 Logout", "logout"),
		),
	)
	a.editOrSendMenu(userID, msgID, text, kb)
}

// joinPromptRows builds the blocked-state keyboard: one URL row per missing
// channel, in the order the gate returned them, then the verify action.
func joinPromptRows(missing []db.ForceJoinChannel) [][]tgbotapi.InlineKeyboardButton {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(missing)+1)
	for _, ch := range missing {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 Join "+truncate(ch.Title, 24), "https://t.me/"+ch.Username),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ I joined — verify me", "verify"),
	))
	return rows
}

func (a *App) sendJoinPrompt(userID int64, msgID int, missing []db.ForceJoinChannel) {
	var b strings.Builder
	b.WriteString("🔒 Access required\n\nTo use this bot you must join these channels first:\n\n")
	for i, ch := range missing {
		fmt.Fprintf(&b, "%d. %s (@%s)\n", i+1, ch.Title, ch.Username)
	}
	b.WriteString("\nJoin them with the buttons below, then tap \"I joined — verify me\".")

	a.editOrSendMenu(userID, msgID, b.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: joinPromptRows(missing)})
}

func (a *App) sendBroadcastHistory(ctx context.Context, userID int64, msgID int) {
	list, err := a.db.ListBroadcasts(ctx, 10)
	if err != nil {
		log.Printf("[bot] list broadcasts: %v", err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}
	if len(list) == 0 {
		a.editOrSendText(userID, msgID, "🗂 No broadcasts yet.")
		return
	}
	var b strings.Builder
	b.WriteString("🗂 Recent broadcasts\n\n")
	for _, bc := range list {
		when := time.Unix(bc.SentAt, 0).Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "• %s — %s (%d ok / %d failed of %d)\n  %s\n",
			when, bc.Status, bc.SuccessCount, bc.FailedCount, bc.TotalUsers, truncate(bc.MessageText, 60))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Admin", "admin"),
		),
	)
	a.editOrSendMenu(userID, msgID, b.String(), kb)
}

func (a *App) sendBackup(ctx context.Context, userID int64) {
	dst := filepath.Join(a.dataDir, "backup.db")
	if err := a.db.SnapshotTo(ctx, dst); err != nil {
		log.Printf("[bot] backup: %v", err)
		a.send(userID, "❌ Backup failed, check the logs.")
		return
	}
	doc := tgbotapi.NewDocument(userID, tgbotapi.FilePath(dst))
	doc.Caption = "Database snapshot"
	if _, err := a.bot.Send(doc); err != nil {
		log.Printf("[bot] send backup: %v", err)
		a.send(userID, "❌ Could not send the backup file.")
	}
}

// ---- send helpers ----

func (a *App) send(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("[bot] send to %d: %v", userID, err)
	}
}

func (a *App) sendWithKeyboard(userID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ReplyMarkup = kb
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("[bot] send to %d: %v", userID, err)
	}
}

// editOrSendMenu edits the originating message in place when possible and
// falls back to a fresh message.
func (a *App) editOrSendMenu(userID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(userID, msgID, text, kb)
		if _, err := a.bot.Request(edit); err == nil {
			return
		}
	}
	a.sendWithKeyboard(userID, text, kb)
}

func (a *App) editOrSendText(userID int64, msgID int, text string) {
	if msgID != 0 {
		edit := tgbotapi.NewEditMessageText(userID, msgID, text)
		if _, err := a.bot.Request(edit); err == nil {
			return
		}
	}
	a.send(userID, text)
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
