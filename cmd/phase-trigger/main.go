// Command phase-trigger detects phase landmarks in a continuous analog
// stream and emits TTL pulses on GPIO output lines and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/phase-trigger/internal/mqtt"
	"github.com/sweeney/phase-trigger/internal/phase"
	"github.com/sweeney/phase-trigger/internal/source"
	"github.com/sweeney/phase-trigger/internal/status"
	"github.com/sweeney/phase-trigger/internal/ttl"
	"github.com/sweeney/phase-trigger/internal/web"
)

// streamID identifies the single stream this daemon drives. The detector
// core supports many; the CLI front end exposes one.
const streamID = 1

type options struct {
	rate      int
	blockSize int
	channels  int
	channel   int
	target    string
	ttlOut    int
	gateLine  int
	gpioChip  string
	broker    string
	heartbeat time.Duration
	httpAddr  string
	device    string
	synth     float64
}

func main() {
	var opts options
	flag.IntVar(&opts.rate, "rate", 30000, "sample rate in Hz")
	flag.IntVar(&opts.blockSize, "block", 1024, "samples per processing block")
	flag.IntVar(&opts.channels, "channels", 1, "number of input channels")
	flag.IntVar(&opts.channel, "channel", 0, "global index of the analyzed channel (-1 = none)")
	flag.StringVar(&opts.target, "phase", "PEAK", "target landmark: PEAK, FALLING_ZERO, TROUGH or RISING_ZERO")
	flag.IntVar(&opts.ttlOut, "ttl-out", 0, "digital output line for trigger pulses")
	flag.IntVar(&opts.gateLine, "gate-line", -1, "digital input line gating detection (-1 = ungated)")
	flag.StringVar(&opts.gpioChip, "gpio", ttl.DefaultChip, `GPIO chip for TTL output ("off" disables)`)
	flag.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&opts.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&opts.device, "device", "", "audio capture device substring (system default if empty)")
	flag.Float64Var(&opts.synth, "synth", 0, "generate a synthetic sine at this frequency instead of capturing (Hz)")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	target, err := phase.ParseLandmark(opts.target)
	if err != nil {
		return fmt.Errorf("parse -phase: %w", err)
	}

	// Initialize the sample source
	var src source.Reader
	deviceName := opts.device
	if opts.synth > 0 {
		src = source.NewSineReader(opts.channels, opts.blockSize, opts.synth, float64(opts.rate), 1.0)
		deviceName = "synth"
	} else {
		src, err = source.NewRealReader(opts.device, opts.rate, opts.channels, opts.blockSize)
		if err != nil {
			return fmt.Errorf("init source: %w", err)
		}
	}
	defer src.Close()

	// Initialize TTL output
	var writer ttl.Writer
	if opts.gpioChip != "off" {
		w, err := ttl.NewRealWriter(opts.gpioChip)
		if err != nil {
			return fmt.Errorf("init ttl: %w", err)
		}
		writer = w
		defer w.Close()
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(opts.broker)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Configure the detector
	det := phase.NewDetector()
	st := det.AddStream(streamID)
	st.Target = target
	st.TriggerChannel = opts.channel
	st.OutputLine = opts.ttlOut
	det.SetGateLine(streamID, opts.gateLine)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		SampleRate:  opts.rate,
		BlockSize:   opts.blockSize,
		Channels:    opts.channels,
		HeartbeatMs: opts.heartbeat.Milliseconds(),
		Broker:      opts.broker,
		HTTPPort:    opts.httpAddr,
		Device:      deviceName,
	})
	tracker.Update([]status.StreamStatus{status.StreamStatusOf(det, streamID)}, 0, 0)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: rate=%d block=%d phase=%s channel=%d ttl-out=%d gate=%d broker=%s",
		opts.rate, opts.blockSize, target, opts.channel, opts.ttlOut, opts.gateLine, opts.broker)

	// Pump sample blocks into a channel so the run loop can multiplex them
	// with control messages and signals.
	blocks := make(chan [][]float64)
	go func() {
		defer close(blocks)
		for {
			block, err := src.ReadBlock()
			if err != nil {
				log.Printf("source stopped: %v", err)
				return
			}
			blocks <- block
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(det, blocks, publisher.Controls(), writer, publisher, publisher, tracker, opts.heartbeat, time.Now, sigCh)
}

func runLoop(det *phase.Detector, blocks <-chan [][]float64, controls <-chan mqtt.ControlMessage, writer ttl.Writer, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, sig <-chan os.Signal) error {
	var (
		sampleNumber  int64
		blockCount    int64
		lastHeartbeat = now()
	)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case msg := <-controls:
			applyControl(det, msg)

		case block, ok := <-blocks:
			if !ok {
				log.Printf("sample source closed, stopping")
				return nil
			}

			// Apply control messages that arrived alongside the block:
			// gate transitions and reconfiguration take effect before the
			// block they precede.
		drain:
			for {
				select {
				case msg := <-controls:
					applyControl(det, msg)
				default:
					break drain
				}
			}

			n := 0
			if len(block) > 0 {
				n = len(block[0])
			}
			events := det.Process(streamID, phase.Block{
				FirstSample: sampleNumber,
				Channels:    block,
				NumSamples:  n,
			})

			t := now()
			for _, ev := range events {
				log.Printf("event: %s line=%d sample=%d", ev.Kind, ev.Line, ev.SampleNumber)
				if writer != nil {
					if err := writer.SetLine(ev.Line, ev.State()); err != nil {
						log.Printf("ttl write error: %v", err)
						// Don't crash on write failure
					}
				}
				if err := publisher.Publish(mqtt.TriggerEvent{Timestamp: t, Stream: streamID, Event: ev}); err != nil {
					log.Printf("publish error: %v", err)
				}
			}

			sampleNumber += int64(n)
			blockCount++

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update([]status.StreamStatus{status.StreamStatusOf(det, streamID)}, blockCount, sampleNumber)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			// Check for heartbeat
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// applyControl dispatches one control message to the detector. Malformed
// messages are logged and dropped; they must not stop the loop.
func applyControl(det *phase.Detector, msg mqtt.ControlMessage) {
	if msg.TTL != nil {
		det.HandleTTLEvent(msg.Stream, msg.TTL.Line, msg.TTL.State, msg.TTL.Word)
		return
	}

	switch msg.Set {
	case "phase":
		name, err := msg.StringValue()
		if err != nil {
			log.Printf("control error: %v", err)
			return
		}
		target, err := phase.ParseLandmark(name)
		if err != nil {
			log.Printf("control error: %v", err)
			return
		}
		det.SetTarget(msg.Stream, target)
		log.Printf("control: stream %d phase -> %s", msg.Stream, target)
	case "channel":
		v, err := msg.IntValue()
		if err != nil {
			log.Printf("control error: %v", err)
			return
		}
		det.SetTriggerChannel(msg.Stream, v)
		log.Printf("control: stream %d channel -> %d", msg.Stream, v)
	case "ttl_out":
		v, err := msg.IntValue()
		if err != nil {
			log.Printf("control error: %v", err)
			return
		}
		det.SetOutputLine(msg.Stream, v)
		log.Printf("control: stream %d ttl_out -> %d", msg.Stream, v)
	case "gate_line":
		v, err := msg.IntValue()
		if err != nil {
			log.Printf("control error: %v", err)
			return
		}
		det.SetGateLine(msg.Stream, v)
		log.Printf("control: stream %d gate_line -> %d", msg.Stream, v)
	default:
		log.Printf("control error: unknown setting %q", msg.Set)
	}
}
