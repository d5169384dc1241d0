package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/matheus3301/recap/internal/kv"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("summary record not found")

const (
	tableRecords = "summary_records"
	tableIndex   = "summary_id_index"
)

// storedRecord is the persisted payload shape. The timestamp field mirrors
// the timestamp component of the composite sort key so the key can be
// reconstructed for deletion.
type storedRecord struct {
	ID        int32  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// compositeKey builds the 12-byte sort key: big-endian millisecond
// timestamp followed by the big-endian sequence id. Ascending byte order
// equals ascending (timestamp, id) order.
func compositeKey(timestampMillis int64, id int32) []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint64(key[:8], uint64(timestampMillis))
	binary.BigEndian.PutUint32(key[8:], uint32(id))
	return key
}

func indexKey(id int32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(id))
	return key
}

// recordTable stores summary records under composite (timestamp, id) keys
// with a secondary id-to-timestamp index for point lookups.
type recordTable struct{}

// insert writes the record and its index entry. Writing an existing key
// replaces the payload; records are otherwise never mutated in place.
func (recordTable) insert(tx *kv.Tx, rec storedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := tx.Set(tableRecords, compositeKey(rec.Timestamp, rec.ID), data); err != nil {
		return err
	}
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(rec.Timestamp))
	return tx.Set(tableIndex, indexKey(rec.ID), ts)
}

// get returns the record with the given sequence id, or ErrNotFound.
func (recordTable) get(tx *kv.Tx, id int32) (storedRecord, error) {
	ts, err := tx.Get(tableIndex, indexKey(id))
	if err != nil {
		return storedRecord{}, err
	}
	if ts == nil {
		return storedRecord{}, ErrNotFound
	}
	timestamp := int64(binary.BigEndian.Uint64(ts))
	data, err := tx.Get(tableRecords, compositeKey(timestamp, id))
	if err != nil {
		return storedRecord{}, err
	}
	if data == nil {
		return storedRecord{}, ErrNotFound
	}
	var rec storedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return storedRecord{}, err
	}
	return rec, nil
}

// delete removes the record with the given id. Returns ErrNotFound if absent.
func (t recordTable) delete(tx *kv.Tx, id int32) error {
	rec, err := t.get(tx, id)
	if err != nil {
		return err
	}
	if err := tx.Delete(tableRecords, compositeKey(rec.Timestamp, rec.ID)); err != nil {
		return err
	}
	return tx.Delete(tableIndex, indexKey(id))
}

// scanAll reads every record in descending timestamp order (most recent
// first). Payloads that fail to decode are skipped and counted, never fatal:
// one corrupt record must not block retrieval of the rest.
func (recordTable) scanAll(tx *kv.Tx) (records []storedRecord, skipped int, err error) {
	err = tx.Range(tableRecords, nil, nil, func(_, value []byte) (bool, error) {
		var rec storedRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			skipped++
			return true, nil
		}
		records = append(records, rec)
		return true, nil
	})
	if err != nil {
		return nil, 0, err
	}
	// The range is ascending by (timestamp, id); presentation order is the reverse.
	slices.Reverse(records)
	return records, skipped, nil
}

// paginate slices the scanAll result. An out-of-range page yields an empty
// slice, never an error.
func (t recordTable) paginate(tx *kv.Tx, page, pageSize int) ([]storedRecord, int, error) {
	all, skipped, err := t.scanAll(tx)
	if err != nil {
		return nil, 0, err
	}
	start := page * pageSize
	if start < 0 || start >= len(all) {
		return nil, skipped, nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], skipped, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
