package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

const embeddingsSchema = `CREATE TABLE embeddings (
	position INTEGER PRIMARY KEY,
	vector   BLOB NOT NULL
)`

// writeEmbeddings creates a fresh SQLite file at path holding one row per
// chunk position.
func writeEmbeddings(path string, embeddings [][]float32) (err error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(DELETE)&_pragma=synchronous(FULL)")
	if err != nil {
		return fmt.Errorf("open embeddings db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close embeddings db: %w", cerr)
		}
	}()

	if _, err := db.Exec(embeddingsSchema); err != nil {
		return fmt.Errorf("create embeddings table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin embeddings tx: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO embeddings (position, vector) VALUES (?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare embeddings insert: %w", err)
	}
	defer stmt.Close()

	for i, vec := range embeddings {
		if _, err := stmt.Exec(i, encodeVector(vec)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings: %w", err)
	}
	return nil
}

// readEmbeddings loads every vector ordered by position. Positions must be
// dense from zero.
func readEmbeddings(path string) ([][]float32, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open embeddings db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT position, vector FROM embeddings ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out [][]float32
	for rows.Next() {
		var pos int
		var blob []byte
		if err := rows.Scan(&pos, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if pos != len(out) {
			return nil, fmt.Errorf("embedding position %d out of sequence (expected %d)", pos, len(out))
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", pos, err)
		}
		out = append(out, vec)
	}
	return out, rows.Err()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
