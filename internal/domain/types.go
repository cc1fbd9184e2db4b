package domain

import "time"

// Status is the lifecycle phase of a game room.
type Status string

const (
	StatusSetup         Status = "setup"
	StatusPresentation  Status = "presentation"
	StatusInvestigation Status = "investigation"
	StatusResults       Status = "results"
	StatusFinished      Status = "finished"
)

// Started reports whether the game is past the join-freely phase.
// Joining and team switching are restricted once a room reaches
// investigation or results.
func (s Status) Started() bool {
	return s == StatusInvestigation || s == StatusResults
}

// Dossier is one round's case: narrative text, answer alternatives and the
// pre-shuffle indices of the correct ones.
type Dossier struct {
	Title          string   `yaml:"title" json:"title"`
	Name           string   `yaml:"name" json:"name"`
	Description    string   `yaml:"description" json:"description"`
	Challenge      string   `yaml:"challenge" json:"challenge"`
	Objective      string   `yaml:"objective" json:"objective"`
	Alternatives   []string `yaml:"alternatives" json:"alternatives"`
	CorrectAnswers []int    `yaml:"correct_answers" json:"correctAnswers"`
	Explanation    string   `yaml:"explanation" json:"explanation"`
}

// TeamResponse is a team's single answer record for one round. Written once
// per (team, round) unless the round is explicitly reset.
type TeamResponse struct {
	Score                int       `json:"score"`
	Timestamp            time.Time `json:"timestamp"`
	VotingUserIDs        []string  `json:"votingUserIds"`
	TotalUsers           int       `json:"totalUsers"`
	CorrectAnswers       []int     `json:"correctAnswers"` // post-shuffle indices
	ShuffledAlternatives []string  `json:"shuffledAlternatives"`
}

// Team groups users under one score and one vote aggregation.
type Team struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Icon         string                `json:"icon"`
	Score        int                   `json:"score"`
	RoundScores  []int                 `json:"roundScores"`
	Responses    map[int]*TeamResponse `json:"responses"`
	LastActivity time.Time             `json:"lastActivity"`
}

// Room is one game instance identified by a 6-digit code. The room owns its
// teams and its custom dossier list; users live in the membership registry.
type Room struct {
	Code              string     `json:"roomCode"`
	Name              string     `json:"roomName"`
	CreatedAt         time.Time  `json:"createdAt"`
	CurrentRound      int        `json:"currentRound"`
	Status            Status     `json:"gameStatus"`
	Teams             []*Team    `json:"teams"`
	CustomDossiers    []*Dossier `json:"customDossiers"`
	UseCustomDossiers bool       `json:"useCustomDossiers"`
	LastResetTime     *time.Time `json:"lastResetTime,omitempty"`
}

// Team returns the team with the given id, or nil.
func (r *Room) Team(id string) *Team {
	for _, t := range r.Teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// LastActivity is the most recent team activity, falling back to the
// creation time for rooms nobody has touched yet.
func (r *Room) LastActivity() time.Time {
	last := r.CreatedAt
	for _, t := range r.Teams {
		if t.LastActivity.After(last) {
			last = t.LastActivity
		}
	}
	return last
}

// User is one player's record inside a room.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TeamID       string    `json:"teamId"`
	HasVoted     bool      `json:"hasVoted"`
	IsLeader     bool      `json:"isLeader"`
	IsConnected  bool      `json:"isConnected"`
	LastActivity time.Time `json:"lastActivity"`
	LastVoteTime time.Time `json:"lastVoteTime"`
	JoinedAt     time.Time `json:"joinedAt"`
	MissedVotes  int       `json:"missedVotes"`
	CurrentVotes []int     `json:"currentVotes"`
}
