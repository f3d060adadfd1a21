package artifacts

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/miaoti/trainticket-fuzz/pkg/faults"
)

// Store keeps a content-addressed mirror of detection evidence on disk:
// one file per record plus complementary <hex>.<type> description files.
// The layout follows the persistent sets of dvyukov/go-fuzz, so evidence
// from repeated runs over the same artifacts is naturally deduplicated.
type Store struct {
	dir  string
	seen map[Sig]bool
}

// Sig is the content address of one evidence record.
type Sig [sha1.Size]byte

func hashData(data []byte) Sig {
	return Sig(sha1.Sum(data))
}

// NewStore opens (or creates) an evidence directory and indexes what is
// already there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	s := &Store{dir: dir, seen: map[Sig]bool{}}
	s.readInDir()
	return s, nil
}

func (s *Store) readInDir() {
	filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		name := info.Name()
		const hexLen = 2 * sha1.Size
		if len(name) > hexLen && isHexString(name[:hexLen]) && name[hexLen] == '.' {
			return nil // description file
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		s.seen[hashData(data)] = true
		return nil
	})
}

func isHexString(str string) bool {
	for _, v := range []byte(str) {
		if v >= '0' && v <= '9' || v >= 'a' && v <= 'f' {
			continue
		}
		return false
	}
	return true
}

// Put mirrors one evidence record attributed to the given fault. Records
// already present are left untouched.
func (s *Store) Put(rec *faults.TestRecord, faultID string) error {

	data := renderRecord(rec)
	sig := hashData(data)
	if s.seen[sig] {
		return nil
	}

	fname := filepath.Join(s.dir, hex.EncodeToString(sig[:]))
	if err := os.WriteFile(fname, data, 0660); err != nil {
		return fmt.Errorf("write evidence: %w", err)
	}
	s.seen[sig] = true

	s.describe(sig, "fault", faultID)
	s.describe(sig, "endpoint", rec.Method+" "+rec.Path)
	s.describe(sig, "code", strconv.Itoa(rec.StatusCode))
	s.describe(sig, "timestamp", time.Now().Format("20060102 150405"))

	return nil
}

// describe writes a complementary description file, best effort.
func (s *Store) describe(sig Sig, typ, desc string) {
	fname := filepath.Join(s.dir, hex.EncodeToString(sig[:])+"."+typ)
	if _, err := os.Stat(fname); os.IsNotExist(err) {
		os.WriteFile(fname, []byte(desc), 0660)
	}
}

func renderRecord(rec *faults.TestRecord) []byte {
	out := rec.Method + " " + rec.Path + "\n" + strconv.Itoa(rec.StatusCode) + "\n"
	if rec.Body != nil {
		if b, err := rec.Body.MarshalJSON(); err == nil {
			out += string(b) + "\n"
		}
	}
	return []byte(out)
}
