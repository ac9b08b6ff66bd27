package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmorass/clipshelf/internal/app"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/storage"
)

func testItems() []clipboard.Item {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []clipboard.Item{
		{ID: "aaaa1111-0000", Kind: clipboard.KindText, Timestamp: at, Text: "first"},
		{ID: "aaaa2222-0000", Kind: clipboard.KindText, Timestamp: at, Text: "second"},
		{ID: "bbbb3333-0000", Kind: clipboard.KindImage, Timestamp: at, ImageFilename: "x.png", SourceApp: "Preview"},
	}
}

func TestFindEntry(t *testing.T) {
	items := testItems()

	item, err := findEntry(items, "aaaa2222-0000")
	require.NoError(t, err)
	assert.Equal(t, "second", item.Text)

	item, err = findEntry(items, "bbbb")
	require.NoError(t, err)
	assert.Equal(t, "x.png", item.ImageFilename)

	_, err = findEntry(items, "aaaa")
	assert.ErrorIs(t, err, errAmbiguousEntry)

	_, err = findEntry(items, "cccc")
	assert.ErrorIs(t, err, errNoEntry)
}

func TestFormatEntry(t *testing.T) {
	items := testItems()
	now := items[0].Timestamp

	assert.Equal(t, "aaaa1111  now       first", formatEntry(items[0], now))
	assert.Equal(t, "bbbb3333  2h        Image  [Preview]", formatEntry(items[2], now.Add(2*time.Hour)))
}

func TestAge(t *testing.T) {
	assert.Equal(t, "now", age(30*time.Second))
	assert.Equal(t, "5m", age(5*time.Minute))
	assert.Equal(t, "3h", age(3*time.Hour))
	assert.Equal(t, "2d", age(50*time.Hour))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, testItems()))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, "text", out[0]["kind"])
	assert.Equal(t, "first", out[0]["text"])
	assert.NotContains(t, out[0], "image_filename")
	assert.Equal(t, "image", out[2]["kind"])
	assert.Equal(t, "Preview", out[2]["source_app"])
}

func TestDeleteCmd(t *testing.T) {
	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.DataDir = dir

	store, err := storage.Open(storage.Options{Dir: dir})
	require.NoError(t, err)
	keep := clipboard.NewTextItem("keep", "", time.Now())
	store.Add(keep)
	name, err := store.SaveImage([]byte("png"))
	require.NoError(t, err)
	drop := clipboard.NewImageItem(name, "", time.Now())
	store.Add(drop)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	cmd := newDeleteCmd(&rootOptions{config: cfg})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{drop.ID[:shortIDLength]})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "deleted "+drop.ID+"\n", out.String())

	items, err := storage.ReadHistory(dir)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].ID)
	_, err = storage.ReadImage(dir, name)
	assert.Error(t, err)
}

func TestDeleteCmd_RefusedWhileAppRunning(t *testing.T) {
	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.DataDir = dir

	running, err := storage.Open(storage.Options{Dir: dir})
	require.NoError(t, err)
	defer running.Close()

	cmd := newDeleteCmd(&rootOptions{config: cfg})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"anything"})
	assert.ErrorIs(t, cmd.Execute(), app.ErrAlreadyRunning)
}
