package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/rostr/pkg/metrics"
)

// Fingerprint identifies the exact content of the journal. Derived caches are
// keyed by it; any byte change, truncation included, changes the fingerprint.
type Fingerprint struct {
	Size    int64  `json:"size"`
	Records int    `json:"records"`
	Hash    uint64 `json:"xxhash"`
	// Torn is set when the last record lacks its terminating newline.
	Torn bool `json:"-"`

	tornOffset int64
}

// Empty reports whether the journal holds no bytes.
func (f Fingerprint) Empty() bool { return f.Size == 0 }

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x/%d/%d", f.Hash, f.Records, f.Size)
}

// Fingerprint hashes the journal content. It does not decode records.
func (s *Store) Fingerprint() (Fingerprint, error) {
	fp, err := s.scan()
	if err != nil {
		return Fingerprint{}, err
	}
	metrics.UpdateJournalRecords(fp.Records)
	return fp, nil
}

func (s *Store) scan() (Fingerprint, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Fingerprint{Hash: xxhash.Sum64(nil)}, nil
	}
	if err != nil {
		return Fingerprint{}, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	h := xxhash.New()
	r := bufio.NewReader(io.TeeReader(f, h))
	var fp Fingerprint
	for {
		line, err := r.ReadSlice('\n')
		fp.Size += int64(len(line))
		if err == nil {
			fp.Records++
			fp.tornOffset = fp.Size
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			// Long record: keep reading the same line.
			continue
		}
		if !errors.Is(err, io.EOF) {
			return Fingerprint{}, fmt.Errorf("read journal: %w", err)
		}
		if len(line) > 0 {
			fp.Torn = true
		}
		break
	}
	if !fp.Torn {
		fp.tornOffset = 0
	}
	fp.Hash = h.Sum64()
	return fp, nil
}
