package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/sensor-player/internal/config"
	"github.com/sweeney/sensor-player/internal/driver"
	"github.com/sweeney/sensor-player/internal/gpio"
	"github.com/sweeney/sensor-player/internal/logging"
	"github.com/sweeney/sensor-player/internal/logic"
	"github.com/sweeney/sensor-player/internal/media"
	"github.com/sweeney/sensor-player/internal/metrics"
	"github.com/sweeney/sensor-player/internal/mqtt"
	"github.com/sweeney/sensor-player/internal/status"
	"github.com/sweeney/sensor-player/internal/web"
)

func runCommand(cmd *cobra.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logging.Init(logging.New(s.Logging.Level, logging.ParseFormat(s.Logging.Format)))
	defer logging.Sync()

	return run(s)
}

func run(s config.Settings) error {
	log := logging.For(logging.ComponentMain)
	clock := driver.NewSystemClock()

	// Initialize GPIO
	reader, err := gpio.NewRealReader(s.GPIO.Chip, s.GPIO.Sensors, s.GPIO.Button)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	leds, err := gpio.NewRealWriter(s.GPIO.Chip, s.GPIO.LEDStatus, s.GPIO.LEDMode, s.GPIO.LEDState)
	if err != nil {
		return fmt.Errorf("init leds: %w", err)
	}
	defer leds.Close()

	wait := func() { time.Sleep(s.Poll()) }

	// Power-on chase, then load the state document
	if err := driver.Sequence(leds, clock, uint32(s.Timing.StartupMs), driver.Flasher, wait); err != nil {
		log.Warnf("startup sequence: %v", err)
	}

	machine, err := loadMachine(s, clock.NowMs())
	if err != nil {
		return err
	}
	log.Infof("loaded %d states from %s", machine.NumStates(), s.States)

	if err := driver.Sequence(leds, clock, driver.ReadyDurationMs, driver.Ready, wait); err != nil {
		log.Warnf("ready signal: %v", err)
	}

	player, err := media.NewExecPlayer(s.Media.Dir, s.Media.Command, logging.For(logging.ComponentMedia))
	if err != nil {
		return fmt.Errorf("init media: %w", err)
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if s.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   s.MQTT.Broker,
			ClientID: s.MQTT.ClientID,
			Topic:    s.MQTT.Topic,
			Logger:   logging.For(logging.ComponentMQTT),
		})
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		StatesFile:  s.States,
		PollMs:      s.Timing.PollMs,
		ConfirmMs:   s.Timing.ConfirmMs,
		HoldMs:      s.Timing.HoldMs,
		HeartbeatMs: s.Timing.HeartbeatMs,
		Broker:      s.MQTT.Broker,
		HTTPAddr:    s.HTTP.Addr,
	})
	tracker.SetLoaded(machine.NumStates())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	metrics.SetState(machine.Current())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	}

	// Start HTTP status server
	if s.HTTP.Addr != "" {
		srv := web.New(s.HTTP.Addr, tracker)
		webLog := logging.For(logging.ComponentWeb)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				webLog.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		webLog.Infof("http status server listening on %s", s.HTTP.Addr)
	}

	runner := driver.New(machine, reader, leds, player, clock, driver.Options{
		ConfirmMs: uint32(s.Timing.ConfirmMs),
		HoldMs:    uint32(s.Timing.HoldMs),
		Blink:     s.Blink(),
		Logger:    logging.For(logging.ComponentDriver),
	})

	log.Infof("started: poll=%v states=%s broker=%q heartbeat=%v", s.Poll(), s.States, s.MQTT.Broker, s.Heartbeat())
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("sd_notify: %v", err)
	} else if ok {
		log.Debugf("notified systemd")
	}

	ticker := time.NewTicker(s.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(loop{
		runner:     runner,
		player:     player,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  s.Heartbeat(),
		now:        time.Now,
		log:        log,
	}, ticker.C, sigCh)

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if shutdownErr := runner.Shutdown(); shutdownErr != nil {
		log.Warnf("shutdown: %v", shutdownErr)
	}
	return err
}

// loadMachine loads the state document and builds the machine. Any
// configuration error is fatal.
func loadMachine(s config.Settings, now uint32) (*logic.Machine, error) {
	states, err := config.LoadFile(s.States, s.DocumentOptions())
	if err != nil {
		return nil, fmt.Errorf("load states: %w", err)
	}
	return logic.NewMachine(states, now)
}

type loop struct {
	runner     *driver.Runner
	player     media.Player
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
	log        *zap.SugaredLogger
}

func runLoop(l loop, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := l.now()

	for {
		select {
		case s := <-sig:
			l.log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.publishSystem(mqtt.EventShutdown, signalName, true)
			return nil

		case t := <-tick:
			l.step(t)

			if l.heartbeat > 0 && t.Sub(lastHeartbeat) >= l.heartbeat {
				lastHeartbeat = t
				snap := l.tracker.Snapshot()
				l.log.Infof("heartbeat: state=%d transitions=%d skips=%d resets=%d errors=%d",
					snap.State, snap.Counts.Transitions, snap.Counts.Skips, snap.Counts.Resets, snap.Counts.Errors)
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				l.publishSystem(mqtt.EventHeartbeat, "", false)
			}
		}
	}
}

// step runs one control cycle and fans the result out to metrics, the
// status tracker and MQTT.
func (l loop) step(t time.Time) {
	res, err := l.runner.Tick()
	if err != nil {
		l.log.Warnf("tick: %v", err)
		metrics.ObserveTickError()
	}

	m := l.runner.Machine()
	if res.Changed {
		metrics.ObserveTransition(res.Change.From, res.Change.To)
		st, _ := m.State(res.Change.To)
		if err := l.publisher.PublishTransition(mqtt.TransitionEvent{
			Timestamp: t,
			From:      res.Change.From,
			To:        res.Change.To,
			Media:     st.MediaRef,
		}); err != nil {
			l.log.Warnf("publish error: %v", err)
		}
	}
	if res.Button != logic.ButtonNone {
		metrics.ObserveButton(string(res.Button))
		state := m.Current()
		if res.Changed {
			state = res.Change.From
		}
		if err := l.publisher.PublishButton(mqtt.ButtonEvent{
			Timestamp: t,
			Kind:      string(res.Button),
			State:     state,
		}); err != nil {
			l.log.Warnf("publish error: %v", err)
		}
	}
	if res.MediaStarted {
		metrics.ObserveMediaStart()
	}

	tick := status.Tick{
		State:        m.Current(),
		Media:        m.CurrentState().MediaRef,
		MediaActive:  l.player.IsActive(),
		Flags:        l.runner.Flags(),
		Button:       l.runner.ButtonPhase(),
		Transitioned: res.Changed,
		Gesture:      res.Button,
		MediaStarted: res.MediaStarted,
		Failed:       err != nil,
	}
	if res.Sampled {
		tick.Sensors = res.Sample.Sensors
	} else {
		tick.Sensors = l.tracker.Snapshot().Sensors
	}
	l.tracker.Update(tick)
	l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
}

func (l loop) publishSystem(event, reason string, retained bool) {
	l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	snap := l.tracker.Snapshot()
	if err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}); err != nil {
		l.log.Warnf("failed to publish %s event: %v", event, err)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
