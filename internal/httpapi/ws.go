package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plugwatch/plugwatch/internal/aggregate"
	"github.com/plugwatch/plugwatch/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The addon sits behind the device-local ingress; origin checks happen
	// there.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// feedPayload is one push on the live feed: the full interval list plus the
// rollups derived from it.
type feedPayload struct {
	Intervals []model.OutageInterval `json:"intervals"`
	Daily     []model.DailyTotal     `json:"daily"`
	Today     model.TodayTotals      `json:"today"`
}

// stream upgrades to a websocket and pushes a snapshot on every store
// mutation. The current snapshot is sent immediately on connect.
func (a *API) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Clear the server read deadline inherited by the hijacked connection.
	_ = conn.SetReadDeadline(time.Time{})

	snapshots, cancel := a.feed.Subscribe()
	defer cancel()

	initial, err := a.repo.ListAll(r.Context())
	if err != nil {
		a.logger.Error("initial feed snapshot failed", "err", err)
		return
	}
	if err := a.writeSnapshot(conn, initial); err != nil {
		return
	}

	// Reader goroutine: drains client frames and surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case intervals, ok := <-snapshots:
			if !ok {
				return
			}
			if err := a.writeSnapshot(conn, intervals); err != nil {
				return
			}
		}
	}
}

func (a *API) writeSnapshot(conn *websocket.Conn, intervals []model.OutageInterval) error {
	payload := feedPayload{
		Intervals: intervals,
		Daily:     aggregate.GroupByDay(intervals, a.loc),
		Today:     aggregate.TodayTotals(intervals, a.now(), a.loc),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(payload); err != nil {
		a.logger.Debug("websocket write failed", "err", err)
		return err
	}
	return nil
}
