// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// tschsim loads a TOML-described set of TSCH nodes, wires them together
// through a simmedium.Medium, and runs them for a fixed number of
// timeslots, printing per-ASN telemetry and data confirms/indications.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/tve/tschmac/macaddr"
	"github.com/tve/tschmac/schedule"
	"github.com/tve/tschmac/simmedium"
	"github.com/tve/tschmac/timer"
	"github.com/tve/tschmac/tsch"
	"github.com/tve/tschmac/txqueue"
)

type Config struct {
	Debug     bool
	Slots     int
	TxAirtime int `toml:"tx_airtime_us"`
	PropDelay int `toml:"prop_delay_us"`
	Node      []NodeConfig
}

type NodeConfig struct {
	Name      string
	ShortAddr int `toml:"short_addr"`
	PanID     int `toml:"pan_id"`
	Seed      int64
	Slotframe []SlotframeConfig
	Send      []SendConfig
}

type SlotframeConfig struct {
	Handle int
	Size   int
	Link   []LinkConfig
}

type LinkConfig struct {
	Handle        int
	Timeslot      int
	Options       []string
	ChannelOffset int `toml:"channel_offset"`
	NodeAddr      int `toml:"node_addr"`
}

type SendConfig struct {
	AtSlot  int `toml:"at_slot"`
	DstAddr int `toml:"dst_addr"`
	Ack     bool
	Handle  int
	Payload string
}

func linkOptions(names []string) schedule.LinkOption {
	var opt schedule.LinkOption
	for _, n := range names {
		switch n {
		case "tx":
			opt |= schedule.OptionTX
		case "rx":
			opt |= schedule.OptionRX
		case "shared":
			opt |= schedule.OptionShared
		case "timekeeping":
			opt |= schedule.OptionTimekeeping
		default:
			fmt.Fprintf(os.Stderr, "unknown link option %q\n", n)
		}
	}
	return opt
}

func main() {
	help := flag.Bool("help", false, "print usage help")
	configFile := flag.String("config", "tschsim.toml", "path to config file")
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s -config tschsim.toml\n", os.Args[0])
		os.Exit(1)
	}

	config := &Config{Slots: 20, TxAirtime: 2000, PropDelay: 50}
	rawConfig, err := ioutil.ReadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot access config file: %s\n", err)
		os.Exit(1)
	}
	if err := toml.Unmarshal(rawConfig, config); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config file: %s\n", err)
		os.Exit(1)
	}
	if len(config.Node) == 0 {
		fmt.Fprintf(os.Stderr, "At least one node must be specified in the config\n")
		os.Exit(1)
	}

	if config.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	clk := timer.NewVirtualClock()
	medium := simmedium.NewMedium(clk, uint64(config.TxAirtime), uint64(config.PropDelay))

	macs := make(map[string]*tsch.MAC, len(config.Node))
	var timeslotLength uint64

	for i, n := range config.Node {
		radio := medium.Attach(simmedium.NodeID(i + 1))
		sdb := schedule.New()
		q := txqueue.New(1)
		hopping := schedule.NewDefaultHoppingSequence(1, 16)
		m := tsch.New(sdb, q, radio, clk, hopping, n.Seed)
		radio.SetCallbacks(m)

		m.PIB.PanID = macaddr.PANID(n.PanID)
		m.PIB.ShortAddress = macaddr.Short(n.ShortAddr)
		timeslotLength = m.Tmpl.TimeslotLength

		name := n.Name
		m.SetEventFunc(func(e tsch.Event) {
			if config.Debug {
				log.Printf("[%s] asn=%d %s %s", name, e.ASN, e.Kind, e.Note)
			}
		})
		m.OnDataConfirm = func(c tsch.McpsDataConfirm) {
			log.Printf("[%s] data confirm handle=%d status=%v", name, c.Handle, c.Status)
		}
		m.OnDataIndication = func(ind tsch.McpsDataIndication) {
			log.Printf("[%s] data indication from=0x%04x payload=%q", name, ind.SrcShort, ind.Payload)
		}

		for _, sf := range n.Slotframe {
			if c := m.MlmeSetSlotframeRequest(uint8(sf.Handle), schedule.Add, uint16(sf.Size)); c.Status != tsch.SlotframeSuccess {
				fmt.Fprintf(os.Stderr, "node %s: slotframe %d: %v\n", name, sf.Handle, c.Status)
				os.Exit(1)
			}
			for _, l := range sf.Link {
				params := schedule.LinkParams{
					SlotframeHandle: uint8(sf.Handle),
					LinkHandle:      uint16(l.Handle),
					Timeslot:        uint16(l.Timeslot),
					ChannelOffset:   uint16(l.ChannelOffset),
					Options:         linkOptions(l.Options),
					NodeAddr:        macaddr.Short(l.NodeAddr),
				}
				if c := m.MlmeSetLinkRequest(schedule.Add, params); c.Status != tsch.LinkSuccess {
					fmt.Fprintf(os.Stderr, "node %s: link %d: %v\n", name, l.Handle, c.Status)
					os.Exit(1)
				}
			}
		}

		macs[name] = m
	}

	names := make([]string, 0, len(macs))
	for name := range macs {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Printf("nodes: %v", names)

	for _, n := range config.Node {
		m := macs[n.Name]
		for _, s := range n.Send {
			send := s
			at := uint64(send.AtSlot) * timeslotLength
			node := n
			clk.After(at, func() {
				_, err := m.McpsDataRequest(tsch.McpsDataRequest{
					SrcMode:    macaddr.ModeShort,
					DstMode:    macaddr.ModeShort,
					DstPan:     macaddr.PANID(node.PanID),
					DstShort:   macaddr.Short(send.DstAddr),
					MsduHandle: uint8(send.Handle),
					AckTx:      send.Ack,
					Payload:    []byte(send.Payload),
				})
				if err != nil {
					log.Printf("[%s] McpsDataRequest rejected: %v", node.Name, err)
				}
			})
		}
		m.MlmeTschModeRequest(true)
	}

	clk.Advance(uint64(config.Slots) * timeslotLength)
	log.Printf("simulation complete after %d slots", config.Slots)
}
