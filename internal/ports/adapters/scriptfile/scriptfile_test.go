package scriptfile

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/forPelevin/linecut/internal/types"
)

func TestParse_SkipsBlankAndTrims(t *testing.T) {
	in := "\ufeffHello there.\n\n   \n  Why are you lying to me?  \r\nGoodbye\n"
	got, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []types.ScriptLine{
		{Index: 0, Text: "Hello there."},
		{Index: 1, Text: "Why are you lying to me?"},
		{Index: 2, Text: "Goodbye"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %+v, want %+v", got, want)
	}
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(p, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := New(p).Load(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.txt")).Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing script")
	}
}
