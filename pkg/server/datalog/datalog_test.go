package datalog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EmptyPathDisablesLogging(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, l)

	// A nil *Log must no-op rather than panic.
	l.Write(Record{Kind: "lookup", Domain: "example", Outcome: "ok"})
	assert.NoError(t, l.Close())
}

func TestLog_WriteAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datalog.jsonl")
	l, err := Open(path)
	require.NoError(t, err)

	l.Write(Record{Kind: "lookup", Domain: "example", Map: "passwd", Key: "name", Outcome: "ok"})
	l.Write(Record{Kind: "auth", Domain: "example", Key: "alice", Outcome: "password incorrect"})

	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "lookup", records[0].Kind)
	assert.Equal(t, "ok", records[0].Outcome)
	assert.Equal(t, "auth", records[1].Kind)
	assert.Equal(t, "password incorrect", records[1].Outcome)
}
