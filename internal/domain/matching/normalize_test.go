package matching

import "testing"

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Why are you lying to me?":    "why are you lying to me",
		"  Hello,\n\tWORLD!!  ":       "hello world",
		"don't  stop":                 "dont stop",
		"a - b":                       "a b",
		"":                            "",
		"...":                         "",
		"Ｆｕｌｌｗｉｄｔｈ text":            "fullwidth text",
		"snake_case stays":            "snake_case stays",
		"Café  au   lait":             "café au lait",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := Normalize(in); got != want {
				t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  It's — like — THIS, ok?  "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Fatalf("normalize not idempotent: %q then %q", once, twice)
	}
}
