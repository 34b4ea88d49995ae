package responseformat

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type point struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{JSON, MsgPack} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			f := NewFormatter(format)
			in := []point{{"outTemp", 71.5}, {"rain", 0.02}}
			for _, p := range in {
				if err := f.Write(&buf, p); err != nil {
					t.Fatalf("Write failed: %v", err)
				}
			}

			d := NewDecoder(&buf, format)
			var out []point
			for {
				var p point
				err := d.Decode(&p)
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				out = append(out, p)
			}
			if len(out) != len(in) || out[0] != in[0] || out[1] != in[1] {
				t.Errorf("decoded %+v, want %+v", out, in)
			}
		})
	}
}

func TestMsgPackUsesJSONTags(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(MsgPack).Write(&buf, point{"x", 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("value")) {
		t.Error("expected the json tag name in the encoded map")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", MsgPack, false},
		{"msgpack", MsgPack, false},
		{"json", JSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
