// wulfpack-wire converts protocol messages between their JSON and protobuf
// representations and classifies user pool trigger payloads. It is meant for
// crafting request bodies and inspecting captured ones.
//
// Usage:
//
//	wulfpack-wire encode --type password-policy [--format protobuf] [--compression snappy] [--base64] [file]
//	wulfpack-wire decode --type password-policy [--format protobuf] [--encoding snappy] [--base64] [file]
//	wulfpack-wire classify [file]
//
// JSON input may contain comments and trailing commas. Without a file, input
// is read from stdin.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/wulf-data-engineering/wulfpack"
	"github.com/wulf-data-engineering/wulfpack/cognito"
	"github.com/wulf-data-engineering/wulfpack/protocols"
)

// messages maps type names to constructors of the message they select.
var messages = map[string]func() any{
	"empty":           func() any { return &protocols.Empty{} },
	"password-policy": func() any { return &protocols.PasswordPolicy{} },
	"sign-up-data":    func() any { return &protocols.SignUpData{} },
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "encode":
		return runEncode(args[1:], stdin, stdout, stderr)
	case "decode":
		return runDecode(args[1:], stdin, stdout, stderr)
	case "classify":
		return runClassify(args[1:], stdin, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  wulfpack-wire encode   --type NAME [--format protobuf|json] [--compression snappy|zstd|lz4] [--base64] [file]
  wulfpack-wire decode   --type NAME [--format protobuf|json] [--encoding TOKEN] [--base64] [file]
  wulfpack-wire classify [--strict] [file]

Message types: %s
`, strings.Join(messageNames(), ", "))
}

func messageNames() []string {
	names := make([]string, 0, len(messages))
	for name := range messages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newMessage(name string) (any, error) {
	constructor, ok := messages[name]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q (known: %s)", name, strings.Join(messageNames(), ", "))
	}
	return constructor(), nil
}

// readInput reads the single optional file argument, or stdin.
func readInput(args []string, stdin io.Reader) ([]byte, error) {
	switch len(args) {
	case 0:
		return io.ReadAll(stdin)
	case 1:
		return os.ReadFile(args[0])
	default:
		return nil, fmt.Errorf("unexpected argument: %s", args[1])
	}
}

func runEncode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	typeName := flagSet.String("type", "", "message type to encode")
	formatName := flagSet.String("format", "protobuf", "output format (protobuf, json)")
	compression := flagSet.String("compression", wulfpack.EncodingSnappy, "envelope for large protobuf output (snappy, zstd, lz4)")
	asBase64 := flagSet.Bool("base64", false, "write the body base64 encoded")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	msg, err := newMessage(*typeName)
	if err != nil {
		return err
	}
	format, err := wulfpack.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	compressor, err := wulfpack.ParseCompressor(*compression)
	if err != nil {
		return err
	}

	input, err := readInput(flagSet.Args(), stdin)
	if err != nil {
		return err
	}
	wire := wulfpack.NewWire(wulfpack.WithCompressor(compressor))
	if err := wire.Read(jsonc.ToJSON(input), wulfpack.FormatJSON, "", msg); err != nil {
		return fmt.Errorf("read %s: %w", *typeName, err)
	}

	body, contentEncoding, err := wire.Write(msg, format)
	if err != nil {
		return fmt.Errorf("write %s: %w", *typeName, err)
	}
	fmt.Fprintf(stderr, "%s: %s\n", wulfpack.HeaderContentType, format.ContentType())
	if contentEncoding != "" {
		fmt.Fprintf(stderr, "%s: %s\n", wulfpack.HeaderContentEncoding, contentEncoding)
	}

	if *asBase64 {
		_, err = fmt.Fprintln(stdout, base64.StdEncoding.EncodeToString(body))
		return err
	}
	_, err = stdout.Write(body)
	return err
}

func runDecode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	typeName := flagSet.String("type", "", "message type to decode")
	formatName := flagSet.String("format", "protobuf", "input format (protobuf, json)")
	contentEncoding := flagSet.String("encoding", "", "Content-Encoding of the input, if compressed")
	asBase64 := flagSet.Bool("base64", false, "read the body base64 encoded")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	msg, err := newMessage(*typeName)
	if err != nil {
		return err
	}
	format, err := wulfpack.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	input, err := readInput(flagSet.Args(), stdin)
	if err != nil {
		return err
	}
	if *asBase64 {
		input, err = base64.StdEncoding.DecodeString(strings.TrimSpace(string(input)))
		if err != nil {
			return fmt.Errorf("base64: %w", err)
		}
	}
	if format == wulfpack.FormatJSON {
		input = jsonc.ToJSON(input)
	}

	wire := wulfpack.NewWire()
	if err := wire.Read(input, format, *contentEncoding, msg); err != nil {
		return fmt.Errorf("read %s: %w", *typeName, err)
	}
	text, _, err := wire.Write(msg, wulfpack.FormatJSON)
	if err != nil {
		return fmt.Errorf("write %s: %w", *typeName, err)
	}
	return writeIndented(stdout, text)
}

func runClassify(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("classify", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	strict := flagSet.Bool("strict", false, "fail when a recognised trigger source cannot be decoded")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	input, err := readInput(flagSet.Args(), stdin)
	if err != nil {
		return err
	}
	event, err := cognito.Decode(jsonc.ToJSON(input))
	if errors.Is(err, cognito.ErrInvalidJSON) {
		return err
	}

	triggerSource := cognito.TriggerSource(event)
	if triggerSource == "" {
		triggerSource = "-"
	}
	fmt.Fprintf(stdout, "%s\t%s\n", event.Kind(), triggerSource)
	if err != nil {
		if *strict {
			return err
		}
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	return nil
}

func writeIndented(w io.Writer, data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}
