package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/user-none/emlpt/cli"
	"github.com/user-none/emlpt/emu"
	"github.com/user-none/emlpt/lpt"
)

func main() {
	device := flag.String("device", "0", "starting device: table index or name")
	rate := flag.Int("rate", 96000, "output sample rate")
	block := flag.Int("block", 512, "frames per output block")
	buffers := flag.Int("buffers", 10, "output blocks in flight")
	out := flag.String("out", "oto", "output: oto, null, or a .wav path")
	vgmPath := flag.String("vgm", "", "VGM/VGZ file to play through the port")
	pcmPath := flag.String("pcm", "", "WAV file to stream to a DAC device")
	loop := flag.Bool("loop", false, "restart the host source at its end")
	seconds := flag.Float64("seconds", 0, "stop after this many seconds (0 = until interrupted)")
	volume := flag.Float64("volume", 1.0, "playback volume for oto output")
	keys := flag.Bool("keys", false, "hot-swap from the keyboard (space/n = next, 1-7 = device, q = quit)")
	list := flag.Bool("list", false, "list devices and exit")
	flag.Parse()

	if *list {
		listDevices()
		return
	}

	runner, err := cli.NewRunner(cli.Options{
		Device:  *device,
		Rate:    *rate,
		Block:   *block,
		Buffers: *buffers,
		Out:     *out,
		VGM:     *vgmPath,
		PCM:     *pcmPath,
		Loop:    *loop,
		Seconds: *seconds,
		Volume:  *volume,
		Keys:    *keys,
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

func listDevices() {
	b := emu.NewBoard(lpt.NewPool(lpt.NewPort(), lpt.DefaultPoolConfig), 96000)
	for i, d := range emu.NewDeviceTable(b) {
		fmt.Printf("%d  %s\n", i, d.Name())
	}
	fmt.Printf("wiring: %v\n", emu.DefaultWiring)
}
