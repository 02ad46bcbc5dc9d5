// Package journal records economic intents and outcomes as append-only
// compressed JSONL. An intent entry is written before the mutate/external
// step of every economic action and a commit or abort entry after, so a
// recovery pass can reconcile partial failures against the durable store.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Entry stages.
const (
	StageIntent = "intent"
	StageCommit = "commit"
	StageAbort  = "abort"
)

// Actions.
const (
	ActionFishing = "fishing_catch"
	ActionSell    = "sell"
	ActionVerify  = "verify_purchase"
)

// Entry is one journal line.
type Entry struct {
	Time    string `json:"time"`
	Stage   string `json:"stage"`
	Action  string `json:"action"`
	Address string `json:"address"`
	ItemID  string `json:"item_id,omitempty"`
	Qty     int64  `json:"qty,omitempty"`
	Amount  int64  `json:"amount,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Journal writes entries to hourly-rotated zstd JSONL files under
// <dataDir>/journal.
type Journal struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func New(dataDir string) *Journal {
	return &Journal{baseDir: filepath.Join(dataDir, "journal"), prefix: "economy"}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// Record stamps and appends one entry. The write is flushed before return
// so the intent survives a crash of the action that follows it.
func (j *Journal) Record(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.Time = time.Now().UTC().Format(time.RFC3339Nano)

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	path := j.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 128*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err1 error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err1 = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	return err1
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}
