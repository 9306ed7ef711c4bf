// Package featureflags evaluates FEATURE_FLAGS for optional behaviour.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// MentionNotifications notifies users named with @username in posts and comments.
	MentionNotifications = "mention_notifications"
	// FollowingFeedDefault makes GET /posts show only followed authors unless following=false.
	FollowingFeedDefault = "following_feed_default"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "mention_notifications=on,following_feed_default=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
// Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given user.
// Values are on/true/1, off/false/0, or N% for a deterministic per-user
// rollout; percentage rollouts are off for anonymous callers.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	switch {
	case err != nil, pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Flag is one configured flag as reported to admins.
type Flag struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Enabled bool   `json:"enabled"`
}

// List returns the configured flags sorted by name, evaluated for userID.
func (m *Manager) List(userID uint) []Flag {
	if m == nil {
		return []Flag{}
	}
	out := make([]Flag, 0, len(m.flags))
	for name, value := range m.flags {
		out = append(out, Flag{Name: name, Value: value, Enabled: m.Enabled(name, userID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
