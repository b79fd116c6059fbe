// Package ids generates and parses agent identifiers and branch names.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPrefix is the leading component of generated agent IDs.
const DefaultPrefix = "cwt"

// MainSessionID is the session ID of the orchestrator session that runs in
// the repository root. It never names an agent.
const MainSessionID = "main"

// suffixBytes is the number of random bytes in an ID (two hex chars each).
const suffixBytes = 2

// maxUniqueAttempts bounds NewUnique's retry loop.
const maxUniqueAttempts = 32

// dateLayout is the date component of an agent ID.
const dateLayout = "20060102"

// ErrIDSpaceExhausted is returned when NewUnique cannot find a free ID.
var ErrIDSpaceExhausted = errors.New("could not generate an unused agent id")

// Parts is a parsed agent ID.
type Parts struct {
	Prefix string // e.g. "cwt"
	Date   string // YYYYMMDD
	Suffix string // random hex
}

// New returns a fresh agent ID of the form <prefix>-<YYYYMMDD>-<hex>.
// Uniqueness is probabilistic; use NewUnique when a registry is available.
func New(prefix string) string {
	return NewAt(prefix, time.Now())
}

// NewAt is New with an explicit clock.
func NewAt(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the
		// clock so an ID is still produced.
		n := now.UnixNano()
		buf[0], buf[1] = byte(n>>8), byte(n)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format(dateLayout), hex.EncodeToString(buf))
}

// NewUnique generates IDs until exists reports one as unused.
func NewUnique(prefix string, exists func(id string) bool) (string, error) {
	for i := 0; i < maxUniqueAttempts; i++ {
		id := New(prefix)
		if exists == nil || !exists(id) {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

// Parse splits an agent ID into its parts. The prefix may itself contain
// dashes; the date and suffix are always the last two components.
func Parse(id string) (Parts, bool) {
	last := strings.LastIndex(id, "-")
	if last <= 0 || last == len(id)-1 {
		return Parts{}, false
	}
	rest, suffix := id[:last], id[last+1:]

	mid := strings.LastIndex(rest, "-")
	if mid <= 0 {
		return Parts{}, false
	}
	prefix, date := rest[:mid], rest[mid+1:]

	if _, err := time.Parse(dateLayout, date); err != nil {
		return Parts{}, false
	}
	if _, err := hex.DecodeString(suffix); err != nil {
		return Parts{}, false
	}
	return Parts{Prefix: prefix, Date: date, Suffix: suffix}, true
}

// BranchName builds the branch for an agent: <namespace>/<id>/<slug>.
// An empty slug drops the last component.
func BranchName(namespace, id, slug string) string {
	if slug == "" {
		return namespace + "/" + id
	}
	return namespace + "/" + id + "/" + slug
}
