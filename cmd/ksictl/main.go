// Command ksictl is a thin command-line front end over package ksi,
// exercising the same Sign/Extend/Verify flows a library caller drives.
// Flags describe global options; args[0] selects the subcommand.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	stdctx "context"

	"github.com/ekobi/goksi/config"
	"github.com/ekobi/goksi/hash"
	"github.com/ekobi/goksi/ksi"
	"github.com/ekobi/goksi/pdu"
	"github.com/ekobi/goksi/policy"
	"github.com/ekobi/goksi/pubfile"
)

var (
	fConfig     = flag.String("config", "", "Path to a YAML context config file")
	fAggregator = flag.String("aggregator", "", "Aggregator URI, overrides config")
	fExtender   = flag.String("extender", "", "Extender URI, overrides config")
	fPubURL     = flag.String("pubfile-url", "", "Publications file URI, overrides config")

	fIn      = flag.String("in", "", "Input signature file (.ksig)")
	fOut     = flag.String("out", "", "Output signature file (.ksig), defaults to stdout")
	fHash    = flag.String("hash", "", "Document hash, as hex or alg:hex (alg defaults to SHA-256)")
	fPubTime = flag.Uint64("pubtime", 0, "Publication time to extend to; 0 extends to the latest publication")
	fPolicy  = flag.String("policy", "general", "Verification policy: internal, calendar, key, pubfile, userpub, general")
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "sign":
		cmdSign()
	case "extend":
		cmdExtend()
	case "verify":
		cmdVerify()
	case "pubfile":
		cmdPubfile(args[1:])
	default:
		log.Fatalf("invalid command %q", args[0])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  ksictl -hash <imprint> [-out sig.ksig] sign\n")
	fmt.Fprintf(os.Stderr, "  ksictl -in sig.ksig [-pubtime N] [-out sig.ksig] extend\n")
	fmt.Fprintf(os.Stderr, "  ksictl -in sig.ksig [-hash <imprint>] [-policy general] verify\n")
	fmt.Fprintf(os.Stderr, "  ksictl [-out pub.bin] pubfile fetch\n")
	fmt.Fprintf(os.Stderr, "  ksictl -in pub.bin pubfile show\n")
}

func buildContext() *ksi.Context {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	c, err := ksi.New(cfg)
	if err != nil {
		log.Fatalf("building context: %v", err)
	}
	return c
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *fConfig != "" {
		cfg, err = config.LoadFile(*fConfig)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if *fAggregator != "" {
		cfg.AggregatorURI = *fAggregator
	}
	if *fExtender != "" {
		cfg.ExtenderURI = *fExtender
	}
	if *fPubURL != "" {
		cfg.PublicationsURL = *fPubURL
	}
	return cfg, nil
}

func parseImprint(s string) (hash.Imprint, error) {
	alg, digest := hash.SHA256, s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		n, err := strconv.ParseUint(s[:i], 10, 8)
		if err != nil {
			return hash.Imprint{}, fmt.Errorf("invalid algorithm id %q: %w", s[:i], err)
		}
		alg, digest = hash.Algorithm(n), s[i+1:]
	}
	b, err := hex.DecodeString(digest)
	if err != nil {
		return hash.Imprint{}, fmt.Errorf("invalid hex digest: %w", err)
	}
	return hash.FromImprint(append([]byte{byte(alg)}, b...))
}

func writeSignature(buf []byte) {
	if *fOut == "" {
		os.Stdout.Write(buf)
		return
	}
	if err := os.WriteFile(*fOut, buf, 0o644); err != nil {
		log.Fatalf("writing %s: %v", *fOut, err)
	}
}

func cmdSign() {
	if *fHash == "" {
		log.Fatalf("sign requires -hash")
	}
	docHash, err := parseImprint(*fHash)
	if err != nil {
		log.Fatalf("%v", err)
	}

	c := buildContext()
	defer c.Close()

	sig, err := c.Sign(stdctx.Background(), docHash)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	buf, err := pdu.EncodeSignature(sig)
	if err != nil {
		log.Fatalf("encoding signature: %v", err)
	}
	writeSignature(buf)
}

func cmdExtend() {
	if *fIn == "" {
		log.Fatalf("extend requires -in")
	}
	raw, err := os.ReadFile(*fIn)
	if err != nil {
		log.Fatalf("reading %s: %v", *fIn, err)
	}
	sig, err := pdu.DecodeSignature(raw)
	if err != nil {
		log.Fatalf("decoding %s: %v", *fIn, err)
	}

	c := buildContext()
	defer c.Close()

	hasPubTime := *fPubTime != 0
	out, err := c.Extend(stdctx.Background(), sig, *fPubTime, hasPubTime)
	if err != nil {
		log.Fatalf("extend: %v", err)
	}
	buf, err := pdu.EncodeSignature(out)
	if err != nil {
		log.Fatalf("encoding signature: %v", err)
	}
	writeSignature(buf)
}

func cmdVerify() {
	if *fIn == "" {
		log.Fatalf("verify requires -in")
	}
	raw, err := os.ReadFile(*fIn)
	if err != nil {
		log.Fatalf("reading %s: %v", *fIn, err)
	}
	sig, err := pdu.DecodeSignature(raw)
	if err != nil {
		log.Fatalf("decoding %s: %v", *fIn, err)
	}

	p, err := resolvePolicy(*fPolicy)
	if err != nil {
		log.Fatalf("%v", err)
	}

	opts := ksi.VerifyOptions{Policy: p}
	if *fHash != "" {
		docHash, err := parseImprint(*fHash)
		if err != nil {
			log.Fatalf("%v", err)
		}
		opts.DocumentHash, opts.HasDocumentHash = docHash, true
	}

	c := buildContext()
	defer c.Close()

	res, err := c.Verify(stdctx.Background(), sig, opts)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	fmt.Printf("%s: %s\n", res.Status, res.Message)
	if res.Status != policy.Ok {
		os.Exit(1)
	}
}

func resolvePolicy(name string) (*policy.Policy, error) {
	switch strings.ToLower(name) {
	case "internal":
		return policy.Internal, nil
	case "calendar":
		return policy.CalendarBased, nil
	case "key":
		return policy.KeyBased, nil
	case "pubfile":
		return policy.PublicationsFileBased, nil
	case "userpub":
		return policy.UserPublicationBased, nil
	case "general", "":
		return policy.General, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

func cmdPubfile(args []string) {
	if len(args) == 0 {
		log.Fatalf("pubfile requires a subcommand: fetch, show")
	}
	switch args[0] {
	case "fetch":
		c := buildContext()
		defer c.Close()
		f, err := c.PublicationsFile(stdctx.Background())
		if err != nil {
			log.Fatalf("fetching publications file: %v", err)
		}
		buf, err := f.Encode()
		if err != nil {
			log.Fatalf("encoding publications file: %v", err)
		}
		writeSignature(buf)
	case "show":
		if *fIn == "" {
			log.Fatalf("pubfile show requires -in")
		}
		raw, err := os.ReadFile(*fIn)
		if err != nil {
			log.Fatalf("reading %s: %v", *fIn, err)
		}
		f, err := pubfile.Parse(raw)
		if err != nil {
			log.Fatalf("parsing publications file: %v", err)
		}
		latest, err := f.Latest()
		if err != nil {
			log.Fatalf("no publication records: %v", err)
		}
		fmt.Printf("publications: %d\n", len(f.PublicationRecs))
		fmt.Printf("latest publication time: %d\n", latest.PublicationTime)
		fmt.Printf("latest published hash: %s\n", latest.PublishedHash)
	default:
		log.Fatalf("invalid pubfile subcommand %q", args[0])
	}
}
