package models

import (
	"strings"
	"time"
)

// ChatMessageID is the logical identity of a message inside a room. It stays
// stable for the life of the message with one exception: an optimistic mock
// message is rebound to the transport-assigned ID once the send is
// acknowledged.
type ChatMessageID string

// PubSubID is the identifier the publish/subscribe backend assigns to a
// message when it is actually published.
type PubSubID string

// NormalizeChatMessageID lower-cases a transport-derived ID so identity
// comparison is case-insensitive.
func NormalizeChatMessageID(raw string) ChatMessageID {
	return ChatMessageID(strings.ToLower(raw))
}

// NormalizePubSubID lower-cases a transport message ID.
func NormalizePubSubID(raw string) PubSubID {
	return PubSubID(strings.ToLower(raw))
}

// Sender identifies the author of a chat message.
type Sender struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url,omitempty"`
	BadgeURL  string `json:"badge_url,omitempty"`
}

// ImageRef points at the body image of an image message together with its
// pixel dimensions.
type ImageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ReactionVote is a single reaction attached to a message. Identity is the
// transport-assigned vote ID.
type ReactionVote struct {
	VoteID      string `json:"vote_id"`
	ReactionID  string `json:"reaction_id"`
	IsLocalUser bool   `json:"is_local_user"`
}

// ContentFilter carries the moderation result attached to a message: the
// rewritten text and the reasons the filter fired.
type ContentFilter struct {
	FilteredText string   `json:"filtered_text"`
	Reasons      []string `json:"reasons"`
}

// ChatMessage is the central entity of a chat room session.
type ChatMessage struct {
	ID              ChatMessageID  `json:"id"`
	RoomID          string         `json:"room_id"`
	Text            string         `json:"text"`
	Sender          Sender         `json:"sender"`
	CreatedAt       time.Time      `json:"created_at"`
	ProgramDateTime *time.Time     `json:"program_date_time,omitempty"`
	Image           *ImageRef      `json:"image,omitempty"`
	Reactions       []ReactionVote `json:"reactions,omitempty"`
	Filter          *ContentFilter `json:"filter,omitempty"`
}

// Clone returns a value snapshot of the message. Observers always receive
// clones so the store's canonical copy is never aliased by callers.
func (m ChatMessage) Clone() ChatMessage {
	cp := m
	if m.ProgramDateTime != nil {
		t := *m.ProgramDateTime
		cp.ProgramDateTime = &t
	}
	if m.Image != nil {
		img := *m.Image
		cp.Image = &img
	}
	if m.Reactions != nil {
		cp.Reactions = make([]ReactionVote, len(m.Reactions))
		copy(cp.Reactions, m.Reactions)
	}
	if m.Filter != nil {
		f := *m.Filter
		f.Reasons = append([]string(nil), m.Filter.Reasons...)
		cp.Filter = &f
	}
	return cp
}

// FilterReasons returns the moderation reasons attached to the message, or
// nil if the message passed the filter untouched.
func (m ChatMessage) FilterReasons() []string {
	if m.Filter == nil {
		return nil
	}
	return m.Filter.Reasons
}
