//
// main.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

// The ot command benchmarks the base OT and the OT extension over an
// in-memory pipe and verifies their outputs.
package main

import (
	"bytes"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/mascot/ot"
	"github.com/markkurossi/mascot/otext"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/preproc"
	"github.com/markkurossi/mascot/prg"
	"golang.org/x/sync/errgroup"
)

func main() {
	group := flag.String("group", "ristretto255",
		"Base OT group: P-256, P-384, P-521, ristretto255")
	numBase := flag.Int("base", 160, "Number of base OTs")
	msgLen := flag.Int("len", 128, "Base OT message length in bytes")
	kappa := flag.Int("kappa", 128, "OT extension width")
	numExt := flag.Int("ext", 1000000, "Number of extended OTs")
	flag.Parse()

	log.SetFlags(0)

	g, err := ot.GroupByName(*group)
	if err != nil {
		log.Fatal(err)
	}
	sconn, rconn := p2p.Pipe()
	timing := preproc.NewTiming()

	if err := baseOT(sconn, rconn, g, *numBase, *msgLen); err != nil {
		log.Fatal(err)
	}
	timing.Sample("Base OT", *numBase, sconn.Stats.Sum())

	sender, receiver, err := setup(sconn, rconn, g, *kappa)
	if err != nil {
		log.Fatal(err)
	}
	timing.Sample("Seed OTs", *kappa, sconn.Stats.Sum())

	if err := extend(sconn, rconn, sender, receiver, *numExt); err != nil {
		log.Fatal(err)
	}
	timing.Sample("Extend", *numExt, sconn.Stats.Sum())

	timing.Print(os.Stdout, sconn.Stats)
}

func newDRBG() *prg.DRBG {
	d, err := prg.NewDRBGFromReader(rand.Reader)
	if err != nil {
		log.Fatal(err)
	}
	return d
}

func baseOT(sconn, rconn *p2p.Conn, g ot.Group, n, l int) error {
	sRand := newDRBG()
	rRand := newDRBG()

	pairs := make([]ot.Pair, n)
	for i := range pairs {
		pairs[i].M0 = sRand.Bytes(l)
		pairs[i].M1 = sRand.Bytes(l)
	}
	choices := rRand.Bits(n)

	var result [][]byte
	var eg errgroup.Group
	eg.Go(func() error {
		return ot.NewCO(g, sRand).Send(sconn, pairs)
	})
	eg.Go(func() error {
		var err error
		result, err = ot.NewCO(g, rRand).Receive(rconn, choices)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, c := range choices {
		expected := pairs[i].M0
		if c {
			expected = pairs[i].M1
		}
		if !bytes.Equal(expected, result[i]) {
			return errors.Newf("base OT %d: verify failed", i)
		}
	}
	return nil
}

func setup(sconn, rconn *p2p.Conn, g ot.Group, kappa int) (
	*otext.Sender, *otext.Receiver, error) {

	sRand := newDRBG()
	rRand := newDRBG()

	var sender *otext.Sender
	var receiver *otext.Receiver
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		sender, err = otext.NewSender(sconn, ot.NewCO(g, sRand), kappa, 32,
			sRand)
		return err
	})
	eg.Go(func() error {
		var err error
		receiver, err = otext.NewReceiver(rconn, ot.NewCO(g, rRand), kappa,
			32, rRand)
		return err
	})
	return sender, receiver, eg.Wait()
}

func extend(sconn, rconn *p2p.Conn, sender *otext.Sender,
	receiver *otext.Receiver, n int) error {

	var seeds []otext.Seeds
	var choices []bool
	var chosen [][]byte
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		seeds, err = sender.Extend(sconn, n)
		return err
	})
	eg.Go(func() error {
		var err error
		choices, chosen, err = receiver.ExtendRandom(rconn, n)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, c := range choices {
		expected := seeds[i].S0
		if c {
			expected = seeds[i].S1
		}
		if !bytes.Equal(expected, chosen[i]) {
			return errors.Newf("extended OT %d: verify failed", i)
		}
	}
	fmt.Printf("Verified %d extended OTs\n", n)
	return nil
}
