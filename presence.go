package main

import (
	"strconv"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/presence_controller/engine"
	. "github.com/elijahnyp/presence_controller/util"
)

type Command struct { //nolint:govet // struct layout optimized for clarity over memory
	Data    []byte
	Topic   string
	Group   string
	Channel int
}

var model Model

var eng *engine.Engine

/* ***************************************
Routines, dependencies, and Routine Init
*/

// channels
var command_channel = make(chan Command, 10)

// ParseBoolPayload accepts the switch payloads HA and friends send: integers
// (0 = off, anything else = on) and the usual ON/OFF/true/false strings.
func ParseBoolPayload(data []byte) (bool, bool) {
	payload := strings.TrimSpace(string(data))
	if numd, err := strconv.Atoi(payload); err == nil {
		return numd != 0, true
	}
	switch strings.ToUpper(payload) {
	case "ON", "TRUE":
		return true, true
	case "OFF", "FALSE":
		return false, true
	}
	return false, false
}

func CommandRouterRoutine() {
	for {
		item := <-command_channel
		state, ok := ParseBoolPayload(item.Data)
		if !ok {
			Logger.Debug().Msgf("%s: unparseable payload %q", item.Topic, string(item.Data))
			continue
		}
		Logger.Debug().Msgf("%s channel %d set %v", item.Group, item.Channel, state)
		if eng == nil {
			Logger.Warn().Msg("command received before engine built - dropping")
			continue
		}
		eng.HandleTrigger(item.Group, item.Channel, state)
	}
}

// mqttPublisher renders engine signal updates to MQTT state topics and the
// websocket feed.  It runs on the engine loop, so it never waits on the broker.
type mqttPublisher struct{}

func (mqttPublisher) Update(name string, value bool) {
	message := "false"
	if value {
		message = "true"
	}
	if wsHub != nil {
		wsHub.BroadcastUpdate("signal", SignalUpdate{Name: name, Value: value})
	}
	if Client == nil {
		return
	}
	// paho queues the publish - waiting here would stall the engine loop
	Client.Publish(SignalTopic(name), byte(0), Config.GetBool("retain_state"), message)
}

func buildEngine() {
	if eng != nil {
		eng.Stop()
	}
	var configs []engine.GroupConfig
	for _, group := range model.Groups {
		cfg := engine.GroupConfig{
			Name:           group.Name,
			Mode:           group.Mode,
			Stateful:       group.Stateful,
			MotionDelay:    time.Duration(group.MotionDelay()) * time.Second,
			OccupancyDelay: time.Duration(group.OccupancyDelay()) * time.Second,
		}
		for _, trigger := range group.Triggers {
			cfg.Triggers = append(cfg.Triggers, engine.TriggerSpec{
				Name:  trigger.Name,
				Delay: time.Duration(trigger.Delay) * time.Second,
			})
		}
		configs = append(configs, cfg)
	}
	eng = engine.NewEngine(configs, mqttPublisher{}, nil)
	eng.Start()
	Logger.Info().Msgf("engine built with %d groups", len(configs))
}

func subscribeCommandTopics() {
	for _, topic := range model.SubscribeTopics() {
		RegisterMQTTSubscription(topic, receiver)
	}
}

func receiver(client MQTT.Client, message MQTT.Message) {
	Logger.Info().Msgf("Message Received on topic %s", message.Topic())
	group, channel := model.FindGroupByCommandTopic(message.Topic())
	if channel == -1 {
		Logger.Debug().Msgf("topic %s not found in model.  Fix subscription or add to model", message.Topic())
		return
	}
	Logger.Debug().Msgf("command message received: queue len %v", len(command_channel))
	command_channel <- Command{
		Data:    message.Payload(),
		Topic:   message.Topic(),
		Group:   group,
		Channel: channel,
	}
}

// init
func Init() {
	go CommandRouterRoutine()
}

func main() {
	LogInit("trace")
	SetupConfig()
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := model.BuildModel(); err != nil {
			Logger.Error().Msgf("Error building presence model: %v", err)
		}
	})
	RegisterNewConfigListener(buildEngine)
	RegisterNewConfigListener(subscribeCommandTopics)
	RegisterMQTTConnectHook("haadvertise", func(client MQTT.Client) {
		AdvertiseHA(model.Groups, client)
	})
	RegisterNewConfigListener(MqttInit)
	OnNewConfig()
	Init()
	monitor := NewMonitorServer()
	monitor.AddHandler("/", HomeHandler)
	monitor.AddHandler("/status", StatusOverview)
	monitor.AddHandler("/api/groups", GroupsApi)
	monitor.AddHandler("/ws", ServeWebSocket)
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })
	Logger.Info().Msg("ready")
	go OnlinePinger() // start the online pinger
	go HAAdvertiser() // start the HA advertisement pinger
	select {}         // block forever
}

// online pinger
func OnlinePinger() {
	for {
		if token := Client.Publish(OnlineTopic(), 0, false, "online"); token.Wait() && token.Error() != nil {
			Logger.Error().Msgf("Error publishing online message: %v", token.Error())
		}
		time.Sleep(10 * time.Second)
	}
}

// HAAdvertiser - re-advertises Home Assistant discovery messages every 5 minutes
func HAAdvertiser() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if Client != nil && Client.IsConnected() {
			Logger.Debug().Msg("Advertising Home Assistant discovery messages")
			AdvertiseHA(model.Groups, Client)
		}
	}
}
