package spoof

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/sirupsen/logrus"
)

// Store maps domain -> record type -> ordered values. It is safe for
// concurrent use; a bulk load is applied under one write lock so readers see
// either the whole file or none of it.
type Store struct {
	mu      sync.RWMutex
	order   []string // domains in first-insertion order
	entries map[string]map[RecordType][]string
	log     logrus.FieldLogger
}

// NewStore creates an empty record store.
func NewStore(log logrus.FieldLogger) *Store {
	return &Store{
		entries: make(map[string]map[RecordType][]string),
		log:     log,
	}
}

// AddRecord appends value to the list held for (domain, recordType). The
// value is not validated here; an unusable value only fails when a reply is
// built from it.
func (s *Store) AddRecord(domain, recordType, value string) error {
	rec, err := newRecord(domain, recordType, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addLocked(rec)
	s.mu.Unlock()
	s.log.Infof("Added spoof record: %s %s %s", rec.Domain, rec.Type, rec.Value)
	return nil
}

func newRecord(domain, recordType, value string) (SpoofRecord, error) {
	t, err := ParseRecordType(recordType)
	if err != nil {
		return SpoofRecord{}, err
	}
	name := NormalizeName(domain)
	if name == "" {
		return SpoofRecord{}, fmt.Errorf("%w: empty domain", core.ErrMalformedRecord)
	}
	return SpoofRecord{Domain: name, Type: t, Value: value}, nil
}

func (s *Store) addLocked(rec SpoofRecord) {
	types, ok := s.entries[rec.Domain]
	if !ok {
		types = make(map[RecordType][]string)
		s.entries[rec.Domain] = types
		s.order = append(s.order, rec.Domain)
	}
	types[rec.Type] = append(types[rec.Type], rec.Value)
}

// ParseLine parses one "domain,type,value" spoof line.
func ParseLine(line string) (SpoofRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return SpoofRecord{}, fmt.Errorf("%w: expected domain,type,value: %q", core.ErrMalformedRecord, line)
	}
	return newRecord(parts[0], parts[1], strings.TrimSpace(parts[2]))
}

// LoadFromFile reads a spoof file: one domain,type,value per line, blank
// lines and '#' comments ignored. Malformed lines are skipped with a warning.
// The records are appended to the store. It returns the number of records
// added; an unreadable file is an error and leaves the store untouched.
func (s *Store) LoadFromFile(path string) (int, error) {
	staged, err := s.parseFile(path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	for _, rec := range staged {
		s.addLocked(rec)
	}
	s.mu.Unlock()

	s.log.Infof("Loaded %d spoof records from %s", len(staged), path)
	return len(staged), nil
}

// ReloadFromFile replaces the whole table with the records of a spoof file.
// The new table is built aside and swapped in under the write lock, so
// readers see either the old or the new table. An unreadable file leaves the
// store untouched.
func (s *Store) ReloadFromFile(path string) (int, error) {
	staged, err := s.parseFile(path)
	if err != nil {
		return 0, err
	}

	fresh := &Store{entries: make(map[string]map[RecordType][]string)}
	for _, rec := range staged {
		fresh.addLocked(rec)
	}

	s.mu.Lock()
	s.entries, s.order = fresh.entries, fresh.order
	s.mu.Unlock()

	s.log.Infof("Reloaded %d spoof records from %s", len(staged), path)
	return len(staged), nil
}

func (s *Store) parseFile(path string) ([]SpoofRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: spoof file: %v", core.ErrInvalidConfig, err)
	}
	defer f.Close()

	var staged []SpoofRecord
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			s.log.Warnf("Skipping invalid line %d in %s: %v", lineNo, path, err)
			continue
		}
		staged = append(staged, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", core.ErrInvalidConfig, path, err)
	}
	return staged, nil
}

// Lookup returns the values for (name, t): an exact domain match first,
// otherwise the first stored domain (in insertion order) that name equals or
// is a subdomain of and that holds t. The result is a copy.
func (s *Store) Lookup(name string, t RecordType) []string {
	values, _, _ := s.Match(name, t)
	return values
}

// Match is Lookup that also reports which stored domain answered and whether
// it was an exact match.
func (s *Store) Match(name string, t RecordType) (values []string, domain string, exact bool) {
	name = NormalizeName(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if types, ok := s.entries[name]; ok {
		if v, ok := types[t]; ok && len(v) > 0 {
			return append([]string(nil), v...), name, true
		}
	}
	for _, d := range s.order {
		if name != d && !strings.HasSuffix(name, "."+d) {
			continue
		}
		if v, ok := s.entries[d][t]; ok && len(v) > 0 {
			return append([]string(nil), v...), d, false
		}
	}
	return nil, "", false
}

// Records returns every stored record, domains in insertion order and types
// in declaration order.
func (s *Store) Records() []SpoofRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SpoofRecord
	for _, d := range s.order {
		for _, t := range AllTypes {
			for _, v := range s.entries[d][t] {
				out = append(out, SpoofRecord{Domain: d, Type: t, Value: v})
			}
		}
	}
	return out
}

// Len returns the number of stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, types := range s.entries {
		for _, v := range types {
			n += len(v)
		}
	}
	return n
}
