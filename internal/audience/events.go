// Package audience resolves campaign recipients from segment definitions
// and historical engagement events.
package audience

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Event is one historical engagement record for a tenant. Segment
// membership is evidenced either by a filterable field set or by a bare
// segment tag in the type field.
type Event struct {
	Email   string         `json:"email"`
	Type    string         `json:"type"`
	Segment string         `json:"segment,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
	At      time.Time      `json:"at,omitempty"`
}

// Store provides a tenant's audience data: the event log, stored segment
// definitions, and the unsubscribe set.
type Store interface {
	// Events returns every historical event for the tenant.
	Events(tenant string) ([]Event, error)
	// Definitions returns the tenant's stored segment definitions.
	Definitions(tenant string) ([]SegmentDef, error)
	// Unsubscribed returns the tenant's unsubscribed addresses.
	Unsubscribed(tenant string) (map[string]bool, error)
	// ModTime returns the last modification time of the tenant's event
	// log, used for cache invalidation.
	ModTime(tenant string) (time.Time, error)
}

const (
	eventsFile       = "events.jsonl"
	segmentsFile     = "segments.json"
	unsubscribedFile = "unsubscribed.json"
)

// unsubscribeEventType marks an event-log record as an unsubscribe action.
const unsubscribeEventType = "unsubscribe"

// FileStore is the file-backed Store. Each tenant owns a directory under
// the data root holding an event log in JSON lines, a segment definition
// file, and an unsubscribe list.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Events reads the tenant's event log. A missing log resolves to an empty
// slice; malformed lines are skipped.
func (s *FileStore) Events(tenant string) ([]Event, error) {
	f, err := os.Open(filepath.Join(s.root, tenant, eventsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("skipping malformed event line")
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Definitions reads the tenant's segment definitions. A missing file
// resolves to none.
func (s *FileStore) Definitions(tenant string) ([]SegmentDef, error) {
	data, err := os.ReadFile(filepath.Join(s.root, tenant, segmentsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var defs []SegmentDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Unsubscribed derives the tenant's unsubscribe set from unsubscribe events
// in the log, unioned with the provisioned unsubscribe list when one exists.
// Neither file is required.
func (s *FileStore) Unsubscribed(tenant string) (map[string]bool, error) {
	events, err := s.Events(tenant)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool)
	for _, ev := range events {
		if ev.Type == unsubscribeEventType && ev.Email != "" {
			set[ev.Email] = true
		}
	}

	data, err := os.ReadFile(filepath.Join(s.root, tenant, unsubscribedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, err
	}
	var emails []string
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		set[e] = true
	}
	return set, nil
}

// ModTime stats the tenant's event log. A missing log yields the zero time.
func (s *FileStore) ModTime(tenant string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(s.root, tenant, eventsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
