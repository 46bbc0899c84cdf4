package upstream

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/mcoot/playerwatch/internal/model"
)

// Resource type tags used in the upstream documents
const (
	typePlayer  = "player"
	typeSession = "session"
	typeServer  = "server"
)

// Player is a player entity as reported upstream
type Player struct {
	ID      string
	Name    string
	Private bool
}

// Session is one play session of a player on the server
type Session struct {
	ID        string
	PlayerID  string
	Name      string
	Start     time.Time
	Stop      *time.Time // nil while the session is active
	FirstTime bool
	Private   bool
}

// Server is the summary of the polled server
type Server struct {
	ID         string
	Name       string
	Status     string
	Players    int
	MaxPlayers int
}

// ServerSnapshot is the decoded result of one server fetch.
//
// Players holds every player currently online, keyed by upstream id.
// Sessions groups the included sessions by the upstream id of their player,
// in payload order. Faults records players whose entities could not be
// decoded; they must be treated as failures for that player only.
type ServerSnapshot struct {
	Server   Server
	Players  map[string]Player
	Sessions map[string][]Session
	Faults   map[string]error
}

type document struct {
	Data     json.RawMessage `json:"data"`
	Included []resource      `json:"included"`
}

type resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

// relationship data is either a single reference or a list of them
type relationship struct {
	Data json.RawMessage `json:"data"`
}

type resourceRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type playerAttributes struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type sessionAttributes struct {
	Name      string     `json:"name"`
	Start     time.Time  `json:"start"`
	Stop      *time.Time `json:"stop"`
	FirstTime bool       `json:"firstTime"`
	Private   bool       `json:"private"`
}

type serverAttributes struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
}

// ref returns the single resource referenced by the named relationship
func (r resource) ref(name string) (resourceRef, bool) {
	rel, ok := r.Relationships[name]
	if !ok || len(rel.Data) == 0 {
		return resourceRef{}, false
	}
	var ref resourceRef
	if err := json.Unmarshal(rel.Data, &ref); err != nil || ref.ID == "" {
		return resourceRef{}, false
	}
	return ref, true
}

func (r resource) player() (Player, error) {
	var attrs playerAttributes
	if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
		return Player{}, fmt.Errorf("%w: player %s: %v", model.ErrMalformedEntry, r.ID, err)
	}
	return Player{ID: r.ID, Name: attrs.Name, Private: attrs.Private}, nil
}

func (r resource) session(playerID string) (Session, error) {
	var attrs sessionAttributes
	if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
		return Session{}, fmt.Errorf("%w: session %s: %v", model.ErrMalformedEntry, r.ID, err)
	}
	if attrs.Start.IsZero() {
		return Session{}, fmt.Errorf("%w: session %s has no start time", model.ErrMalformedEntry, r.ID)
	}
	return Session{
		ID:        r.ID,
		PlayerID:  playerID,
		Name:      attrs.Name,
		Start:     attrs.Start,
		Stop:      attrs.Stop,
		FirstTime: attrs.FirstTime,
		Private:   attrs.Private,
	}, nil
}

// decodeServerDocument turns a server document with included players and
// sessions into a ServerSnapshot. An error is returned only when the
// document as a whole cannot be read.
func decodeServerDocument(body []byte) (*ServerSnapshot, error) {
	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode server document: %w", err)
	}

	var data resource
	if err := json.Unmarshal(doc.Data, &data); err != nil {
		return nil, fmt.Errorf("decode server resource: %w", err)
	}
	if data.Type != typeServer {
		return nil, fmt.Errorf("unexpected primary resource type %q", data.Type)
	}

	var srvAttrs serverAttributes
	if len(data.Attributes) > 0 {
		if err := json.Unmarshal(data.Attributes, &srvAttrs); err != nil {
			return nil, fmt.Errorf("decode server attributes: %w", err)
		}
	}

	snap := &ServerSnapshot{
		Server: Server{
			ID:         data.ID,
			Name:       srvAttrs.Name,
			Status:     srvAttrs.Status,
			Players:    srvAttrs.Players,
			MaxPlayers: srvAttrs.MaxPlayers,
		},
		Players:  make(map[string]Player),
		Sessions: make(map[string][]Session),
		Faults:   make(map[string]error),
	}

	for _, res := range doc.Included {
		switch res.Type {
		case typePlayer:
			p, err := res.player()
			if err != nil {
				snap.Faults[res.ID] = err
				continue
			}
			snap.Players[p.ID] = p
		case typeSession:
			ref, ok := res.ref(typePlayer)
			if !ok {
				// a session that names no player cannot affect any tracked player
				continue
			}
			s, err := res.session(ref.ID)
			if err != nil {
				snap.Faults[ref.ID] = err
				continue
			}
			snap.Sessions[ref.ID] = append(snap.Sessions[ref.ID], s)
		}
	}

	return snap, nil
}

// decodePlayerList reads a list of player resources, skipping malformed entries
func decodePlayerList(body []byte) ([]Player, int, error) {
	var doc struct {
		Data []resource `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode player list: %w", err)
	}

	players := make([]Player, 0, len(doc.Data))
	skipped := 0
	for _, res := range doc.Data {
		if res.Type != typePlayer {
			continue
		}
		p, err := res.player()
		if err != nil {
			skipped++
			continue
		}
		players = append(players, p)
	}
	return players, skipped, nil
}
