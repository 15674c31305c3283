// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Level is one ranked entry of the list.
type Level struct {
	Rank          int            `json:"rank"`
	Title         string         `json:"title"`
	Creator       string         `json:"creator"`
	VideoRef      string         `json:"videoRef,omitempty"`
	RecordHolders []RecordHolder `json:"recordHolders"`
}

// RecordHolder credits a player with completing a level.
type RecordHolder struct {
	Name              string     `json:"name"`
	CompletionPercent Completion `json:"completionPercent"`
	Verified          bool       `json:"verified"`
}

// Completion keeps the completion percentage as it was entered ("57", "57%", "45.5").
// Numbers are accepted on decode and stored in their decimal form.
type Completion string

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (c *Completion) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*c = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Completion(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Anything else (bools, objects) is kept as text; it parses to zero later.
		*c = Completion(raw)
		return nil
	}
	*c = Completion(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// levelJSON is the decode shape that also understands documents written by the
// first version of the list, which used "youtube" for the video id.
type levelJSON struct {
	Rank          int            `json:"rank"`
	Title         string         `json:"title"`
	Creator       string         `json:"creator"`
	VideoRef      string         `json:"videoRef"`
	Youtube       string         `json:"youtube"`
	RecordHolders []RecordHolder `json:"recordHolders"`
}

// UnmarshalJSON decodes a level, falling back to the legacy "youtube" key.
func (l *Level) UnmarshalJSON(data []byte) error {
	var aux levelJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = Level{
		Rank:          aux.Rank,
		Title:         aux.Title,
		Creator:       aux.Creator,
		VideoRef:      aux.VideoRef,
		RecordHolders: aux.RecordHolders,
	}
	if l.VideoRef == "" {
		l.VideoRef = aux.Youtube
	}
	return nil
}

type recordHolderJSON struct {
	Name              string      `json:"name"`
	CompletionPercent *Completion `json:"completionPercent"`
	Percent           *Completion `json:"percent"`
	Verified          bool        `json:"verified"`
}

// UnmarshalJSON decodes a record holder, falling back to the legacy "percent" key.
func (r *RecordHolder) UnmarshalJSON(data []byte) error {
	var aux recordHolderJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RecordHolder{Name: aux.Name, Verified: aux.Verified}
	switch {
	case aux.CompletionPercent != nil:
		r.CompletionPercent = *aux.CompletionPercent
	case aux.Percent != nil:
		r.CompletionPercent = *aux.Percent
	}
	return nil
}

// Clone returns a deep copy of the level.
func (l Level) Clone() Level {
	out := l
	if l.RecordHolders != nil {
		out.RecordHolders = make([]RecordHolder, len(l.RecordHolders))
		copy(out.RecordHolders, l.RecordHolders)
	}
	return out
}

// CloneLevels deep-copies a level slice. A nil input yields an empty, non-nil slice.
func CloneLevels(levels []Level) []Level {
	out := make([]Level, len(levels))
	for i, l := range levels {
		out[i] = l.Clone()
	}
	return out
}

// LevelChanges describes an edit. Rank is optional; every other field replaces the
// stored value, record holders included.
type LevelChanges struct {
	Rank          *int
	Title         string
	Creator       string
	VideoRef      string
	RecordHolders []RecordHolder
}

// Player is a derived leaderboard row.
type Player struct {
	Position    int            `json:"position"`
	Name        string         `json:"name"`
	TotalPoints float64        `json:"totalPoints"`
	Records     []PlayerRecord `json:"records"`
}

// PlayerRecord is one level contributing to a player's total.
type PlayerRecord struct {
	Rank    int     `json:"rank"`
	Title   string  `json:"title"`
	Percent float64 `json:"percent"`
}
