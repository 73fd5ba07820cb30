package wire

import (
	"errors"
	"testing"
)

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"chunk", FormatChunk(Chunk{SessionID: "a1b2c", N: 1, Total: 2, Payload: "deadbeef"})},
		{"chunk-ack", FormatChunkAck(ChunkAck{SessionID: "a1b2c", N: 1, Next: 2})},
		{"ack", FormatAck(Ack{SessionID: "a1b2c", TXID: "deadbeef"})},
		{"nack", FormatNack(Nack{SessionID: "a1b2c", Detail: "txn-mempool-conflict"})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg, err := Parse(c.text)
			if err != nil {
				t.Fatalf("parse(%q): %v", c.text, err)
			}
			var out string
			switch msg.Kind {
			case KindChunk:
				out = FormatChunk(msg.Chunk)
			case KindChunkAck:
				out = FormatChunkAck(msg.ChunkAck)
			case KindAck:
				out = FormatAck(msg.Ack)
			case KindNack:
				out = FormatNack(msg.Nack)
			}
			if out != c.text {
				t.Fatalf("round trip mismatch: %q != %q", out, c.text)
			}
		})
	}
}

func TestParseChunk(t *testing.T) {
	msg, err := Parse("BTC_TX|a1b2c|1/2|deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != KindChunk {
		t.Fatalf("expected KindChunk, got %v", msg.Kind)
	}
	if msg.Chunk.N != 1 || msg.Chunk.Total != 2 || msg.Chunk.Payload != "deadbeef" {
		t.Fatalf("unexpected chunk: %+v", msg.Chunk)
	}
}

func TestParseNackRejoinsDetail(t *testing.T) {
	msg, err := Parse("BTC_NACK|sid|ERROR|inconsistent total_chunks|extra|bits")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Nack.Detail != "inconsistent total_chunks|extra|bits" {
		t.Fatalf("detail not rejoined: %q", msg.Nack.Detail)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"",
		"GARBAGE",
		"BTC_TX|sid|1/2",                // missing payload
		"BTC_TX|sid|0/2|aa",             // n < 1
		"BTC_TX|sid|3/2|aa",             // n > total
		"BTC_TX|sid|01/2|aa",            // leading zero
		"BTC_TX|sid|1/2|AA",             // uppercase hex
		"BTC_TX|sid|1/2|abc",            // odd length hex
		"BTC_CHUNK_ACK|sid|1|OK|BAD|2",  // wrong framing keyword
		"BTC_ACK|sid|SUCCESS|NOTXID:ab", // missing TXID: prefix
		"BTC_NACK|sid|WRONG|detail",     // missing ERROR marker
	}
	for _, c := range cases {
		if _, err := Parse(c); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q): expected ErrMalformed, got %v", c, err)
		}
	}
}

func TestParseChunkAckRequestsNextBeyondTotal(t *testing.T) {
	msg, err := Parse("BTC_CHUNK_ACK|sid|2|OK|REQUEST_CHUNK|3")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ChunkAck.Next != 3 {
		t.Fatalf("expected next=3, got %d", msg.ChunkAck.Next)
	}
}

func TestFieldsMayNotContainPipeExceptNackDetail(t *testing.T) {
	// Sanity check: format never emits '|' inside a sid/payload/txid field,
	// so the only field that can legitimately carry '|' is the nack detail.
	c := Chunk{SessionID: "abcde", N: 1, Total: 1, Payload: "aa"}
	text := FormatChunk(c)
	fields := 0
	for _, r := range text {
		if r == '|' {
			fields++
		}
	}
	if fields != 3 {
		t.Fatalf("expected 3 delimiters in chunk message, got %d", fields)
	}
}
