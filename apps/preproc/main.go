//
// main.go
//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// The preproc command runs one party of a preprocessing session over
// TCP and prints a timing report of the produced material.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/stdr"
	"github.com/markkurossi/mascot/env"
	"github.com/markkurossi/mascot/mascot"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/preproc"
	"github.com/markkurossi/text/superscript"
)

var moduli = map[string]string{
	"m61":  "0x1fffffffffffffff",
	"m127": "0x7fffffffffffffffffffffffffffffff",
	"p256": "0xffffffff00000001000000000000000000000000ffffffffffffffffffffffff",
}

func main() {
	id := flag.Int("id", 0, "Party ID")
	parties := flag.String("parties", "",
		"Comma-separated party addresses in party ID order")
	fModulus := flag.String("modulus", "m127",
		"Field modulus: m61, m127, p256, or a number")
	ssp := flag.Int("ssp", env.DefaultStatisticalBits,
		"Statistical security bits")
	csp := flag.Int("csp", env.DefaultComputationalBits,
		"Computational security bits")
	triples := flag.Int("triples", 1000, "Number of triples")
	bits := flag.Int("bits", 0, "Number of random bits")
	masks := flag.Int("masks", 0, "Number of input masks per party")
	fVerbose := flag.Int("v", 0, "Log verbosity")
	flag.Parse()

	stdr.SetVerbosity(*fVerbose)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).
		WithName("preproc")

	addrs := strings.Split(*parties, ",")
	if len(*parties) == 0 || len(addrs) < 2 {
		fmt.Printf("At least two party addresses required\n")
		os.Exit(1)
	}
	modulus, err := parseModulus(*fModulus)
	if err != nil {
		fmt.Printf("Invalid modulus '%s': %s\n", *fModulus, err)
		os.Exit(1)
	}

	params := env.NewParams(*id, len(addrs), modulus)
	params.StatisticalBits = *ssp
	params.ComputationalBits = *csp
	if err := params.Validate(); err != nil {
		log.Fatal(err)
	}
	cfg := &env.Config{
		Logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		cfg.GetTimeout())
	defer cancel()

	mesh, err := p2p.Connect(ctx, *id, addrs, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer mesh.Close()

	session, err := mascot.NewSession(ctx, mesh, params, cfg)
	if err != nil {
		log.Fatal(err)
	}
	supplier := preproc.NewMascotSupplier(session, cfg)

	for i := 0; i < *triples; i++ {
		if _, err := supplier.NextTriple(ctx); err != nil {
			log.Fatal(err)
		}
	}
	for i := 0; i < *bits; i++ {
		if _, err := supplier.NextBit(ctx); err != nil {
			log.Fatal(err)
		}
	}
	for p := 0; p < len(addrs); p++ {
		for i := 0; i < *masks; i++ {
			if _, err := supplier.NextInputMask(ctx, p); err != nil {
				log.Fatal(err)
			}
		}
	}

	fmt.Printf("Party P%s: %d triples, %d bits, %d input masks\n",
		superscript.Itoa(*id), *triples, *bits, *masks*len(addrs))
	supplier.Timing().Print(os.Stdout, mesh.Stats())
}

func parseModulus(val string) (*big.Int, error) {
	if named, ok := moduli[val]; ok {
		val = named
	}
	m, ok := new(big.Int).SetString(val, 0)
	if !ok {
		return nil, errors.New("invalid number")
	}
	return m, nil
}
