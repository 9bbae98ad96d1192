package monitor_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/born-ml/probe/internal/monitor"
	"github.com/born-ml/probe/internal/tensor"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ts    = time.Unix(0, 1700000000000000000)
	enter = monitor.Event{Domain: monitor.Function, Site: monitor.Enter, Name: "add", SequenceNumber: 3, Timestamp: ts}
	exit  = monitor.Event{Domain: monitor.Function, Site: monitor.Exit, Name: "add", SequenceNumber: 3, Timestamp: ts}
	alloc = monitor.Event{
		Domain:         monitor.Memory,
		SequenceNumber: -1,
		Mem: &monitor.MemEvent{
			Kind: monitor.Alloc, Device: tensor.HostDevice, ID: 9, Size: 400, TotalAllocated: 800, TotalReserved: 800,
		},
	}
)

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p := monitor.NewPrinter(&buf)
	p.Handle(enter)
	p.Handle(exit)
	p.Handle(alloc)
	require.NoError(t, p.Err())

	assert.Equal(t, strings.Join([]string{
		"Domain: function",
		"Sequence number: 3",
		"Name: add",
		"Domain: memory",
		"Allocate id: 9 on cpu",
		"Size: 400",
		"Total size: 800",
		"Total reserved: 800",
		"",
	}, "\n"), buf.String())
}

func TestPrinter_TextTimestamps(t *testing.T) {
	var buf bytes.Buffer
	p := monitor.NewPrinter(&buf, monitor.WithTimestamps(true))
	p.Handle(enter)
	p.Handle(exit)

	assert.Contains(t, buf.String(), "Enter level: 0 at 1700000000000000000\n")
	assert.Contains(t, buf.String(), "Exit level: 0 at 1700000000000000000\n")
}

func TestPrinter_CallPath(t *testing.T) {
	ev := enter
	ev.CallPath = []monitor.Frame{
		{File: "/src/model.go", Function: "example.com/app.forward", Line: 12},
		{File: "/src/main.go", Function: "main.main", Line: 30},
	}

	var buf bytes.Buffer
	monitor.NewPrinter(&buf).Handle(ev)
	assert.True(t, strings.HasSuffix(buf.String(), strings.Join([]string{
		"Name: add",
		"(0) File: /src/model.go",
		"\tFunction: example.com/app.forward",
		"\tLine: 12",
		"(1) File: /src/main.go",
		"\tFunction: main.main",
		"\tLine: 30",
		"",
	}, "\n")), buf.String())

	buf.Reset()
	monitor.NewPrinter(&buf, monitor.WithFormat(monitor.JSON)).Handle(ev)
	var out struct {
		CallPath []struct {
			File     string `json:"file"`
			Function string `json:"function"`
			Line     int    `json:"line"`
		} `json:"call_path"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.CallPath, 2)
	assert.Equal(t, "main.main", out.CallPath[1].Function)
	assert.Equal(t, 12, out.CallPath[0].Line)
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := monitor.NewPrinter(&buf, monitor.WithFormat(monitor.JSON))
	p.Handle(enter)
	p.Handle(alloc)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "function", first["domain"])
	assert.Equal(t, "enter", first["site"])
	assert.Equal(t, "add", first["name"])
	assert.EqualValues(t, 3, first["sequence_number"])
	assert.NotContains(t, first, "timestamp_ns")

	var second struct {
		Mem struct {
			Kind string `json:"kind"`
			Size int64  `json:"size"`
		} `json:"mem"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "alloc", second.Mem.Kind)
	assert.Equal(t, int64(400), second.Mem.Size)
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("disk full")
}

func TestPrinter_StopsAfterError(t *testing.T) {
	w := &failingWriter{}
	p := monitor.NewPrinter(w, monitor.WithFormat(monitor.JSON))
	p.Handle(enter)
	p.Handle(enter)
	assert.EqualError(t, p.Err(), "disk full")
	assert.Equal(t, 1, w.n)
}

func TestParseFormat(t *testing.T) {
	f, err := monitor.ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, monitor.JSON, f)

	_, err = monitor.ParseFormat("xml")
	assert.Error(t, err)
}
