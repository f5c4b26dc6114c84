package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AccessLevel is the ordered privilege level assigned to every user.
// Higher values include every capability of the lower ones.
type AccessLevel int

const (
	// AccessNone is the level of an account with no privileges.
	AccessNone          AccessLevel = 0
	AccessViewer        AccessLevel = 10
	AccessReporter      AccessLevel = 25
	AccessUpdater       AccessLevel = 40
	AccessDeveloper     AccessLevel = 55
	AccessManager       AccessLevel = 70
	AccessAdministrator AccessLevel = 90
	// AccessNobody as a threshold switches the capability off for everyone.
	// It is never assigned to an account.
	AccessNobody        AccessLevel = 100
)

var accessLevelNames = map[AccessLevel]string{
	AccessNone:          "none",
	AccessViewer:        "viewer",
	AccessReporter:      "reporter",
	AccessUpdater:       "updater",
	AccessDeveloper:     "developer",
	AccessManager:       "manager",
	AccessAdministrator: "administrator",
	AccessNobody:        "nobody",
}

// AccessLevels lists the named levels in ascending order.
func AccessLevels() []AccessLevel {
	return []AccessLevel{
		AccessViewer,
		AccessReporter,
		AccessUpdater,
		AccessDeveloper,
		AccessManager,
		AccessAdministrator,
	}
}

func (l AccessLevel) String() string {
	if name, ok := accessLevelNames[l]; ok {
		return name
	}
	return strconv.Itoa(int(l))
}

// Satisfies reports whether l meets the given threshold. Nothing satisfies
// AccessNobody or above.
func (l AccessLevel) Satisfies(threshold AccessLevel) bool {
	return threshold < AccessNobody && l >= threshold
}

// Assignable reports whether l may be stored on an account.
func (l AccessLevel) Assignable() bool {
	return l >= AccessNone && l <= AccessAdministrator
}

// ParseAccessLevel accepts a level name (case-insensitive) or its numeric value.
func ParseAccessLevel(value string) (AccessLevel, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return AccessNone, fmt.Errorf("access level is empty")
	}
	for level, name := range accessLevelNames {
		if name == trimmed {
			return level, nil
		}
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return AccessNone, fmt.Errorf("unknown access level %q", value)
	}
	if n < 0 {
		return AccessNone, fmt.Errorf("access level %d is negative", n)
	}
	return AccessLevel(n), nil
}

func (l AccessLevel) MarshalJSON() ([]byte, error) {
	if name, ok := accessLevelNames[l]; ok {
		return json.Marshal(name)
	}
	return json.Marshal(int(l))
}

func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 {
			return fmt.Errorf("access level %d is negative", n)
		}
		*l = AccessLevel(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("access level must be a name or number")
	}
	parsed, err := ParseAccessLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
