package polling

import (
	"fmt"
	"time"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/upstream"
)

// BuildSnapshot derives the snapshot of one tracked player from the upstream
// view of the server.
//
// online is the player's upstream entry if the player is currently on the
// server, nil otherwise. sessions are the player's upstream sessions in
// payload order.
//
// An online player takes the first session without a stop time as its active
// session. An offline player takes the completed session that stopped most
// recently. A completed session that stops before it starts is rejected.
func BuildSnapshot(playerID model.PlayerID, online *upstream.Player, sessions []upstream.Session, now time.Time) (*model.PlayerSnapshot, error) {
	snap := &model.PlayerSnapshot{
		PlayerID:  playerID,
		Timestamp: now,
		IsOnline:  online != nil,
	}

	firstTime := false
	private := false

	if online != nil {
		private = online.Private
		for _, sess := range sessions {
			if sess.Stop != nil {
				continue
			}
			start := sess.Start
			duration := max(int64(now.Sub(start)/time.Second), 0)
			snap.SessionStart = &start
			snap.DurationSec = &duration
			firstTime = sess.FirstTime
			break
		}
	} else {
		var latest *upstream.Session
		for i := range sessions {
			sess := &sessions[i]
			if sess.Stop == nil {
				continue
			}
			if sess.Stop.Before(sess.Start) {
				return nil, fmt.Errorf("%w: session %s stops before it starts", model.ErrMalformedEntry, sess.ID)
			}
			if latest == nil || sess.Stop.After(*latest.Stop) {
				latest = sess
			}
		}
		if latest != nil {
			start := latest.Start
			end := *latest.Stop
			duration := int64(end.Sub(start) / time.Second)
			snap.SessionStart = &start
			snap.SessionEnd = &end
			snap.DurationSec = &duration
		}
	}

	snap.FirstTime = &firstTime
	snap.Private = &private
	return snap, nil
}
