package dicom

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// explicitElement encodes one short-form explicit VR little endian element.
func explicitElement(group, elem uint16, vr string, value []byte) []byte {
	buf := make([]byte, 0, 8+len(value))
	buf = binary.LittleEndian.AppendUint16(buf, group)
	buf = binary.LittleEndian.AppendUint16(buf, elem)
	buf = append(buf, vr...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(value)))
	return append(buf, value...)
}

func evenPad(s, pad string) []byte {
	if len(s)%2 != 0 {
		s += pad
	}
	return []byte(s)
}

// writeHeaderFile writes a minimal explicit VR little endian DICOM file
// carrying only the elements the organizer reads.
func writeHeaderFile(t *testing.T, dir, name, seriesUID string, instance int) ports.UploadedFile {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	transferSyntax := explicitElement(0x0002, 0x0010, "UI", evenPad("1.2.840.10008.1.2.1", "\x00"))
	groupLength := binary.LittleEndian.AppendUint32(nil, uint32(len(transferSyntax)))
	buf.Write(explicitElement(0x0002, 0x0000, "UL", groupLength))
	buf.Write(transferSyntax)

	buf.Write(explicitElement(0x0020, 0x000E, "UI", evenPad(seriesUID, "\x00")))
	buf.Write(explicitElement(0x0020, 0x0013, "IS", evenPad(strconv.Itoa(instance), " ")))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return ports.UploadedFile{Filename: name, TempPath: path}
}

func writeGarbageFile(t *testing.T, dir, name string) ports.UploadedFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not a dicom file"), 0o600); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return ports.UploadedFile{Filename: name, TempPath: path}
}

func TestOrganizeOrdersByInstanceNumber(t *testing.T) {
	dir := t.TempDir()
	files := []ports.UploadedFile{
		writeHeaderFile(t, dir, "c.dcm", "1.2.3.10", 30),
		writeHeaderFile(t, dir, "a.dcm", "1.2.3.10", 10),
		writeHeaderFile(t, dir, "b.dcm", "1.2.3.10", 20),
	}

	batch, err := NewOrganizer(testLogger()).Organize(context.Background(), files)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	ordered, ok := batch["1.2.3.10"]
	if !ok {
		t.Fatalf("series 1.2.3.10 missing, got %v", batch)
	}
	var names []string
	for _, f := range ordered {
		names = append(names, f.Filename)
	}
	want := []string{"a.dcm", "b.dcm", "c.dcm"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("order = %v, want %v", names, want)
		}
	}
}

func TestOrganizePartitionsBySeries(t *testing.T) {
	dir := t.TempDir()
	files := []ports.UploadedFile{
		writeHeaderFile(t, dir, "a.dcm", "1.2.3.10", 10),
		writeHeaderFile(t, dir, "b.dcm", "1.2.3.20", 10),
		writeHeaderFile(t, dir, "c.dcm", "1.2.3.10", 20),
	}

	batch, err := NewOrganizer(testLogger()).Organize(context.Background(), files)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("series count = %d, want 2", len(batch))
	}
	if got := len(batch["1.2.3.10"]); got != 2 {
		t.Errorf("series 1.2.3.10 has %d files, want 2", got)
	}
	if got := len(batch["1.2.3.20"]); got != 1 {
		t.Errorf("series 1.2.3.20 has %d files, want 1", got)
	}
}

func TestOrganizeSkipsUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	files := []ports.UploadedFile{
		writeGarbageFile(t, dir, "broken.dcm"),
		writeHeaderFile(t, dir, "good.dcm", "1.2.3.10", 10),
	}

	batch, err := NewOrganizer(testLogger()).Organize(context.Background(), files)
	if err != nil {
		t.Fatalf("organize: %v", err)
	}
	if len(batch) != 1 || len(batch["1.2.3.10"]) != 1 {
		t.Fatalf("batch = %v, want only good.dcm under 1.2.3.10", batch)
	}
}

func TestOrganizeAllUnparsableFails(t *testing.T) {
	dir := t.TempDir()
	files := []ports.UploadedFile{
		writeGarbageFile(t, dir, "one.dcm"),
		writeGarbageFile(t, dir, "two.dcm"),
	}

	_, err := NewOrganizer(testLogger()).Organize(context.Background(), files)
	if err == nil {
		t.Fatal("expected error for fully unparsable batch")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want invalid input", err)
	}
}

func TestOrganizeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOrganizer(testLogger()).Organize(ctx, nil)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
