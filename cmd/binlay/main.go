// binlay - binary layout engine demo tool
//
// Usage:
//
//	binlay encode [file]    Encode the demo record (JSON in) to hex
//	binlay decode [file]    Decode hex bytes against the demo schema
//	binlay roundtrip [file] Decode hex, re-encode, compare byte-for-byte
//	binlay version          Print version info
//
// The demo schema is a length-prefixed, CRC-trailed record:
//
//	u32 length (little-endian, two-way: byte length of payload)
//	bytes payload
//	u32 crc32 (computed over payload)
//
// If no file is given, reads from stdin. Set BINLAY_TRACE=1 to log every
// field event.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/strataform/binlay/binlay"
)

const version = "0.1.0"

// Record is the demo value shape.
type Record struct {
	Length  uint32
	Payload []byte
	CRC     uint32
}

func demoSchema() *binlay.TypeDef {
	return binlay.Struct(Record{},
		binlay.Field("Length", binlay.Prim(binlay.KindU32)),
		binlay.Field("Payload", binlay.Prim(binlay.KindBytes),
			binlay.WithLength(binlay.TwoWay("Length"))),
		binlay.Field("CRC", binlay.Prim(binlay.KindU32),
			binlay.ComputedBy("Payload", binlay.NewCRC32)),
	)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var input io.Reader = os.Stdin
	if len(os.Args) > 2 && os.Args[2] != "-" {
		f, err := os.Open(os.Args[2])
		if err != nil {
			fatal("open file: %v", err)
		}
		defer f.Close()
		input = f
	}

	switch cmd {
	case "encode":
		runEncode(input)
	case "decode":
		runDecode(input)
	case "roundtrip":
		runRoundtrip(input)
	case "version":
		fmt.Printf("binlay %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func runEncode(input io.Reader) {
	var rec Record
	if err := json.NewDecoder(input).Decode(&rec); err != nil {
		fatal("parse record JSON: %v", err)
	}
	data, err := marshal(rec)
	if err != nil {
		fatal("encode: %v", err)
	}
	fmt.Println(hex.EncodeToString(data))
}

func runDecode(input io.Reader) {
	data := readHex(input)
	v, err := binlay.Unmarshal(demoSchema(), data)
	if err != nil {
		fatal("decode: %v", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("render: %v", err)
	}
	fmt.Println(string(out))
}

func runRoundtrip(input io.Reader) {
	data := readHex(input)
	v, err := binlay.Unmarshal(demoSchema(), data)
	if err != nil {
		fatal("decode: %v", err)
	}
	again, err := marshal(v.(Record))
	if err != nil {
		fatal("re-encode: %v", err)
	}
	if !bytes.Equal(data, again) {
		fatal("roundtrip mismatch:\n in:  %x\n out: %x", data, again)
	}
	fmt.Printf("roundtrip ok (%d bytes)\n", len(data))
}

// marshal runs the long-form API so tracing can hook in.
func marshal(rec Record) ([]byte, error) {
	tree, err := binlay.NewTree(demoSchema(), rec)
	if err != nil {
		return nil, err
	}
	if err := tree.Bind(); err != nil {
		return nil, err
	}
	ms := binlay.NewMemoryStream(nil)
	if err := tree.Serialize(ms, tracer()); err != nil {
		return nil, err
	}
	return ms.Bytes(), nil
}

// tracer returns a field-event logger when BINLAY_TRACE is set.
func tracer() binlay.Notifier {
	if os.Getenv("BINLAY_TRACE") == "" {
		return nil
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.TraceLevel).
		With().Timestamp().Logger()
	return binlay.NewLogNotifier(logger)
}

func readHex(input io.Reader) []byte {
	raw, err := io.ReadAll(input)
	if err != nil {
		fatal("read input: %v", err)
	}
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			return -1
		}
		return r
	}, string(raw))
	data, err := hex.DecodeString(clean)
	if err != nil {
		fatal("parse hex: %v", err)
	}
	return data
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: binlay <encode|decode|roundtrip|version> [file]")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "binlay: "+format+"\n", args...)
	os.Exit(1)
}
