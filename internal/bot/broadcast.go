
package bot

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// broadcastWorkers bounds concurrent sendMessage calls so a large fan-out
// does not trip Telegram's flood limits.
const broadcastWorkers = 10

func (a *App) onBroadcastText(ctx context.Context, userID int64, text string) {
	a.clearAwait(userID)
	if len(text) == 0 {
		a.send(userID, "❌ Empty message, broadcast cancelled.")
		return
	}

	ids, err := a.db.ListUserIDs(ctx)
	if err != nil {
		log.Printf("[broadcast] list users: %v", err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}
	if len(ids) == 0 {
		a.send(userID, "📭 No users to broadcast to.")
		return
	}

	bcID, err := a.db.CreateBroadcast(ctx, text, userID, len(ids))
	if err != nil {
		log.Printf("[broadcast] create record: %v", err)
		a.send(userID, "Something went wrong, please try again.")
		return
	}

	a.send(userID, fmt.Sprintf("📣 Broadcasting to %d users...", len(ids)))
	go a.runBroadcast(bcID, text, userID, ids)
}

// runBroadcast fans the message out best-effort: each failure is counted and
// logged, never retried.
func (a *App) runBroadcast(bcID, text string, sentBy int64, ids []int64) {
	var (
		mu      sync.Mutex
		success int
		failed  int
	)

	sem := make(chan struct{}, broadcastWorkers)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			msg := tgbotapi.NewMessage(id, text)
			_, err := a.bot.Send(msg)

			mu.Lock()
			if err != nil {
				failed++
			} else {
				success++
			}
			mu.Unlock()
			if err != nil {
				log.Printf("[broadcast] %s: send to %d: %v", bcID, id, err)
			}
		}(id)
	}
	wg.Wait()

	if err := a.db.FinishBroadcast(context.Background(), bcID, success, failed); err != nil {
		log.Printf("[broadcast] %s: finish record: %v", bcID, err)
	}
	log.Printf("[broadcast] %s done: %d ok, %d failed of %d", bcID, success, failed, len(ids))
	a.send(sentBy, fmt.Sprintf("📣 Broadcast complete: %d delivered, %d failed (of %d).", success, failed, len(ids)))
}
