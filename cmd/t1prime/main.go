// Command t1prime activates a T=1' link over a registered driver and
// sends one or more APDUs, printing the CIP historical bytes and each
// response as hex. Mirrors gocanopen's cmd/sdo_client: parse flags,
// construct the transport, construct the protocol object, run.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/nbtgo/t1prime/pkg/cip"
	"github.com/nbtgo/t1prime/pkg/config"
	"github.com/nbtgo/t1prime/pkg/driver"
	_ "github.com/nbtgo/t1prime/pkg/driver/virtual"
	"github.com/nbtgo/t1prime/pkg/t1prime"
)

type apduFlags []string

func (a *apduFlags) String() string     { return fmt.Sprint([]string(*a)) }
func (a *apduFlags) Set(s string) error { *a = append(*a, s); return nil }
func (a *apduFlags) Type() string       { return "hex" }

func main() {
	var (
		driverName = flag.String("driver", "virtual", "transport driver: i2cdev|spidev|virtual")
		addr       = flag.String("addr", "", "driver address, e.g. /dev/i2c-1:0x28")
		ifsd       = flag.Int("ifsd", t1prime.DefaultIFS, "desired information field size")
		bwt        = flag.Uint16("bwt", t1prime.DefaultBWT, "block waiting time in milliseconds")
		profile    = flag.String("profile", "", "path to an .ini file of named link profiles")
		plid       = flag.String("plid", "i2c", "active physical interface: i2c|spi")
	)
	var apdus apduFlags
	flag.Var(&apdus, "apdu", "hex-encoded APDU to send; may be repeated")
	flag.Parse()

	log.SetLevel(log.InfoLevel)

	resolvedDriver, resolvedAddr, ifsdVal, bwtVal := resolveProfile(*profile, *driverName, *addr, *ifsd, *bwt)

	ch, err := driver.NewChannel(resolvedDriver, resolvedAddr)
	if err != nil {
		log.WithError(err).Fatal("t1prime: cannot construct driver")
	}

	activePLID := cip.PLIDI2C
	if *plid == "spi" {
		activePLID = cip.PLIDSPI
	}

	link, err := t1prime.New(ch, t1prime.WithPLID(activePLID))
	if err != nil {
		log.WithError(err).Fatal("t1prime: cannot construct link")
	}
	if err := link.SetIFSD(context.Background(), ifsdVal); err != nil {
		log.WithError(err).Fatal("t1prime: invalid ifsd")
	}
	link.SetBWT(bwtVal)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hb, err := link.Activate(ctx)
	if err != nil {
		log.WithError(err).Fatal("t1prime: activation failed")
	}
	fmt.Printf("HB: %s\n", hex.EncodeToString(hb))

	for _, apduHex := range apdus {
		request, err := hex.DecodeString(apduHex)
		if err != nil {
			log.WithError(err).Fatalf("t1prime: invalid hex APDU %q", apduHex)
		}
		response, err := link.Transceive(ctx, request)
		if err != nil {
			log.WithError(err).Fatalf("t1prime: transceive failed for %q", apduHex)
		}
		fmt.Printf("<- %s\n", hex.EncodeToString(response))
	}
}

// resolveProfile applies a named profile's defaults underneath any
// flags the operator set explicitly, keyed by the first positional
// argument after flag parsing (the profile name), falling back to
// command-line values when no profile file is given.
func resolveProfile(path, driverName, addr string, ifsd int, bwt uint16) (string, string, int, uint16) {
	if path == "" || flag.NArg() == 0 {
		return driverName, addr, ifsd, bwt
	}
	profiles, err := config.LoadProfiles(path)
	if err != nil {
		log.WithError(err).Fatal("t1prime: cannot load profiles")
	}
	p, ok := profiles[flag.Arg(0)]
	if !ok {
		log.Fatalf("t1prime: unknown profile %q", flag.Arg(0))
	}
	if driverName == "virtual" {
		driverName = p.Driver
	}
	if addr == "" {
		addr = p.Address
	}
	if ifsd == t1prime.DefaultIFS {
		ifsd = p.IFSD
	}
	if bwt == t1prime.DefaultBWT {
		bwt = p.BWT
	}
	return driverName, addr, ifsd, bwt
}
