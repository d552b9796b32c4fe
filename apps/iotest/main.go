//
// main.go
//
// Copyright (c) 2019-2025 Markku Rossi
//
// All rights reserved.
//

// The iotest command measures the transport throughput between two
// parties over TCP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/go-logr/stdr"
	"github.com/markkurossi/mascot/p2p"
	"github.com/markkurossi/mascot/preproc"
)

func main() {
	id := flag.Int("id", 0, "Party ID: 0 sends, 1 receives")
	parties := flag.String("parties", "127.0.0.1:8080,127.0.0.1:8081",
		"Comma-separated party addresses")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to `file`")
	size := flag.Int64("size", 1<<30, "Number of bytes to transfer")
	msgSize := flag.Int("msg", 1<<20, "Message size")
	flag.Parse()

	log.SetFlags(0)

	if len(*cpuprofile) > 0 {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	addrs := strings.Split(*parties, ",")
	if len(addrs) != 2 || *id < 0 || *id > 1 {
		log.Fatal("two parties required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := stdr.New(nil)
	mesh, err := p2p.Connect(ctx, *id, addrs, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer mesh.Close()

	timing := preproc.NewTiming()
	conn := mesh.Peers[1-*id]

	var count int
	if *id == 0 {
		count, err = send(conn, *size, *msgSize)
	} else {
		count, err = receive(conn)
	}
	if err != nil {
		log.Fatal(err)
	}
	timing.Sample("Transfer", count, conn.Stats.Sum())
	timing.Print(os.Stdout, conn.Stats)
}

func send(conn *p2p.Conn, size int64, msgSize int) (int, error) {
	msg := make([]byte, msgSize)
	var count int
	for sent := int64(0); sent < size; sent += int64(msgSize) {
		if err := conn.SendData(msg); err != nil {
			return count, err
		}
		count++
	}
	if err := conn.SendUint32(0); err != nil {
		return count, err
	}
	if err := conn.Flush(); err != nil {
		return count, err
	}
	_, err := conn.ReceiveUint32()
	return count, err
}

func receive(conn *p2p.Conn) (int, error) {
	var count int
	for {
		data, err := conn.ReceiveData()
		if err != nil {
			return count, err
		}
		if len(data) == 0 {
			break
		}
		count++
	}
	if err := conn.SendUint32(int(conn.Stats.Recvd.Load() & 0x7fffffff)); err != nil {
		return count, err
	}
	return count, conn.Flush()
}
