package wordfreq

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// pack encodes the subset of MessagePack the wordfreq data uses.
func pack(buf *bytes.Buffer, v any) {
	switch v := v.(type) {
	case nil:
		buf.WriteByte(0xc0)
	case bool:
		if v {
			buf.WriteByte(0xc3)
		} else {
			buf.WriteByte(0xc2)
		}
	case int:
		switch {
		case v >= 0 && v <= 0x7f:
			buf.WriteByte(byte(v))
		case v < 0 && v >= -32:
			buf.WriteByte(byte(int8(v)))
		default:
			buf.WriteByte(0xd1)
			_ = binary.Write(buf, binary.BigEndian, int16(v))
		}
	case float64:
		buf.WriteByte(0xcb)
		_ = binary.Write(buf, binary.BigEndian, math.Float64bits(v))
	case string:
		if len(v) <= 31 {
			buf.WriteByte(0xa0 | byte(len(v)))
		} else {
			buf.WriteByte(0xd9)
			buf.WriteByte(byte(len(v)))
		}
		buf.WriteString(v)
	case []any:
		if len(v) <= 15 {
			buf.WriteByte(0x90 | byte(len(v)))
		} else {
			buf.WriteByte(0xdc)
			_ = binary.Write(buf, binary.BigEndian, uint16(len(v)))
		}
		for _, item := range v {
			pack(buf, item)
		}
	case map[string]any:
		buf.WriteByte(0x80 | byte(len(v)))
		for k, item := range v {
			pack(buf, k)
			pack(buf, item)
		}
	default:
		panic("unsupported test value")
	}
}

func cbPack(bins ...[]any) []byte {
	items := []any{map[string]any{"format": "cB", "version": 1}}
	for _, bin := range bins {
		items = append(items, bin)
	}
	var buf bytes.Buffer
	pack(&buf, items)
	return buf.Bytes()
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func writeWheel(t *testing.T, files map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordfreq-3.1.1-py3-none-any.whl")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wheel: %v", err)
	}
	zw := zip.NewWriter(out)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close wheel: %v", err)
	}
	return path
}

func openWheel(t *testing.T, files map[string][]byte) *Archive {
	t.Helper()
	a, err := OpenArchive(writeWheel(t, files))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestExtractOrderAndFilter(t *testing.T) {
	a := openWheel(t, map[string][]byte{
		"wordfreq/data/large_en.msgpack.gz": gzipped(t, cbPack(
			[]any{"the", "a", "go-1", "of"},
			[]any{"The", "hello", "the", "naïve"},
			[]any{"world"},
		)),
	})

	words, size, err := a.Extract("en", 3)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if size != SizeLarge {
		t.Fatalf("expected large list, got %s", size)
	}
	if want := []string{"the", "of", "hello"}; !reflect.DeepEqual(words, want) {
		t.Fatalf("got %v, want %v", words, want)
	}
}

func TestExtractFallsBackToSmall(t *testing.T) {
	a := openWheel(t, map[string][]byte{
		"wordfreq/data/small_de.msgpack": cbPack([]any{"die", "Straße", "zwei2"}, []any{"über"}),
	})

	words, size, err := a.Extract("DE", 10)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if size != SizeSmall {
		t.Fatalf("expected small list, got %s", size)
	}
	if want := []string{"die", "Straße", "über"}; !reflect.DeepEqual(words, want) {
		t.Fatalf("got %v, want %v", words, want)
	}
}

func TestExtractErrors(t *testing.T) {
	a := openWheel(t, map[string][]byte{
		"wordfreq/data/large_en.msgpack": cbPack([]any{"x", "1"}),
	})
	if _, _, err := a.Extract("fr", 5); !errors.Is(err, ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
	if _, _, err := a.Extract("en", 5); !errors.Is(err, ErrNoWords) {
		t.Fatalf("expected ErrNoWords, got %v", err)
	}
	if _, _, err := a.Extract("en", 0); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}

func TestOpenArchiveLanguages(t *testing.T) {
	a := openWheel(t, map[string][]byte{
		"wordfreq/data/large_en.msgpack.gz":         []byte("x"),
		"wordfreq/data/small_en.msgpack.gz":         []byte("x"),
		"wordfreq/data/large_pt-br.msgpack.gz":      []byte("x"),
		"wordfreq/data/small_zh-cn.msgpack.gz":      []byte("x"),
		"wordfreq/data/_chinese_mapping.msgpack.gz": []byte("x"),
		"wordfreq/data/jieba_zh.txt":                []byte("x"),
	})
	if got, want := a.Languages(), []string{"en", "pt-br", "zh-cn"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOpenArchiveWithoutLists(t *testing.T) {
	if _, err := OpenArchive(writeWheel(t, map[string][]byte{"README": []byte("x")})); err == nil {
		t.Fatalf("expected error for wheel without lists")
	}
}

func TestParseCBPackRejectsOtherFormats(t *testing.T) {
	var buf bytes.Buffer
	pack(&buf, []any{map[string]any{"format": "other"}, []any{"word"}})
	v, err := decodeMsgpack(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := parseCBPack(v); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestDecodeMsgpackValues(t *testing.T) {
	in := []any{0, 127, -5, -300, 1.5, true, false, nil, "short", string(bytes.Repeat([]byte("w"), 40))}
	var buf bytes.Buffer
	pack(&buf, in)

	got, err := decodeMsgpack(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []any{int64(0), int64(127), int64(-5), int64(-300), 1.5, true, false, nil, "short", string(bytes.Repeat([]byte("w"), 40))}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDecodeMsgpackTruncated(t *testing.T) {
	if _, err := decodeMsgpack(bytes.NewReader([]byte{0x92, 0xa3, 'a'})); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}

func TestLicenseAndNotices(t *testing.T) {
	a := openWheel(t, map[string][]byte{
		"wordfreq/data/large_en.msgpack":       cbPack([]any{"hello"}),
		"wordfreq-3.1.1.dist-info/LICENSE.txt": []byte("Apache License"),
	})
	license, err := a.License()
	if err != nil {
		t.Fatalf("license: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "lists")
	if err := WriteNotices(dir, license); err != nil {
		t.Fatalf("write notices: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, LicenseFile))
	if err != nil || string(got) != "Apache License" {
		t.Fatalf("unexpected license file %q: %v", got, err)
	}
	for _, name := range []string{AttributionFile, DataLicenseFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestSelectLanguages(t *testing.T) {
	available := []string{"de", "en", "pt-br"}

	langs, all, err := SelectLanguages("", available)
	if err != nil || all || !reflect.DeepEqual(langs, []string{"en"}) {
		t.Fatalf("default: %v %v %v", langs, all, err)
	}
	langs, all, err = SelectLanguages(" DE, pt-br,de ", available)
	if err != nil || all || !reflect.DeepEqual(langs, []string{"de", "pt-br"}) {
		t.Fatalf("list: %v %v %v", langs, all, err)
	}
	langs, all, err = SelectLanguages("all", available)
	if err != nil || !all || !reflect.DeepEqual(langs, available) {
		t.Fatalf("all: %v %v %v", langs, all, err)
	}
	if _, _, err := SelectLanguages("fr", available); !errors.Is(err, ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
	if _, _, err := SelectLanguages(" , ", available); err == nil {
		t.Fatalf("expected error for empty list")
	}
}
