package util

import (
	"fmt"
	"strings"
)

const ( //command channels
	TRIGGER = iota
	OCCUPANCY_TRIGGER = iota
)

const ( //group modes
	MODE_SINGLE = "single"
	MODE_DUAL = "dual"
	MODE_FANOUT = "fanout"
)

type Model struct {
	Groups []Group `mapstructure:"groups"`
}

type TriggerEntry struct {
	Name string `mapstructure:"name"`
	Delay int64 `mapstructure:"delay"`
}

type Group struct {
	Name string `mapstructure:"name"`
	Mode string `mapstructure:"mode"`
	Stateful bool `mapstructure:"stateful"`
	Motion_delay int64 `mapstructure:"motion_delay"`
	Occupancy_delay int64 `mapstructure:"occupancy_delay"`
	Triggers []TriggerEntry `mapstructure:"triggers"`
}

func TopicPrefix() string {
	return strings.TrimSuffix(Config.GetString("topic_prefix"), "/")
}

func OnlineTopic() string {
	return TopicPrefix() + "/online"
}

// SignalTopic maps an engine signal name (e.g. "hallway/motion") to its state topic.
func SignalTopic(name string) string {
	return TopicPrefix() + "/" + name
}

func (g Group) TriggerStateTopic() string {
	return TopicPrefix() + "/" + g.Name + "/trigger"
}

func (g Group) TriggerCommandTopic() string {
	return g.TriggerStateTopic() + "/set"
}

func (g Group) OccupancyTriggerStateTopic() string {
	return TopicPrefix() + "/" + g.Name + "/occupancy_trigger"
}

func (g Group) OccupancyTriggerCommandTopic() string {
	return g.OccupancyTriggerStateTopic() + "/set"
}

func (g Group) MotionTopic() string {
	return TopicPrefix() + "/" + g.Name + "/motion"
}

func (g Group) OccupancyTopic() string {
	return TopicPrefix() + "/" + g.Name + "/occupancy"
}

func (g Group) FanoutOccupancyTopic(trigger string) string {
	return TopicPrefix() + "/" + g.Name + "/" + trigger + "/occupancy"
}

// MotionDelay falls back to the configured default when the group doesn't set one.
// Negative values are normalized to 0 at BuildModel time.
func (g Group) MotionDelay() int64 {
	if g.Motion_delay > 0 {
		return g.Motion_delay
	}
	return Config.GetInt64("motion_delay_default")
}

func (g Group) OccupancyDelay() int64 {
	if g.Occupancy_delay > 0 {
		return g.Occupancy_delay
	}
	return Config.GetInt64("occupancy_delay_default")
}

func (m Model) FindGroupByName(name string) (Group, bool) {
	for _, entry := range m.Groups {
		if entry.Name == name {
			return entry, true
		}
	}
	return Group{}, false
}

// FindGroupByCommandTopic resolves an incoming command topic to the group it
// targets plus the channel the command arrived on.  Returns -1 for unknown topics.
func (m Model) FindGroupByCommandTopic(topic string) (string, int) {
	for _, entry := range m.Groups {
		if entry.TriggerCommandTopic() == topic {
			return entry.Name, TRIGGER
		}
		if entry.Mode == MODE_DUAL && entry.OccupancyTriggerCommandTopic() == topic {
			return entry.Name, OCCUPANCY_TRIGGER
		}
	}
	return "", -1
}

func (m Model) SubscribeTopics() []string {
	var topics []string
	for _, entry := range m.Groups {
		topics = append(topics, entry.TriggerCommandTopic())
		if entry.Mode == MODE_DUAL {
			topics = append(topics, entry.OccupancyTriggerCommandTopic())
		}
	}
	return topics
}

// BuildModel unmarshals the presence configuration and normalizes it: groups
// without names or with unknown modes are dropped, fanout groups need at least
// one trigger entry, and negative delays clamp to 0.
func (m *Model) BuildModel() error {
	var raw Model
	err := Config.UnmarshalKey("presence", &raw)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling presence model: %v", err)
		return fmt.Errorf("error")
	}
	m.Groups = m.Groups[:0]
	for _, group := range raw.Groups {
		if group.Name == "" {
			Logger.Warn().Msg("dropping presence group with empty name")
			continue
		}
		if group.Mode == "" {
			group.Mode = MODE_SINGLE
		}
		switch group.Mode {
		case MODE_SINGLE, MODE_DUAL, MODE_FANOUT:
		default:
			Logger.Warn().Msgf("dropping group %s: unknown mode %q", group.Name, group.Mode)
			continue
		}
		if group.Mode == MODE_FANOUT && len(group.Triggers) == 0 {
			Logger.Warn().Msgf("dropping fanout group %s: no triggers configured", group.Name)
			continue
		}
		if group.Motion_delay < 0 {
			Logger.Warn().Msgf("group %s: clamping negative motion_delay to 0", group.Name)
			group.Motion_delay = 0
		}
		if group.Occupancy_delay < 0 {
			Logger.Warn().Msgf("group %s: clamping negative occupancy_delay to 0", group.Name)
			group.Occupancy_delay = 0
		}
		triggers := group.Triggers[:0]
		for _, trigger := range group.Triggers {
			if trigger.Name == "" {
				Logger.Warn().Msgf("group %s: dropping trigger with empty name", group.Name)
				continue
			}
			if trigger.Delay < 0 {
				Logger.Warn().Msgf("group %s: clamping negative delay for trigger %s to 0", group.Name, trigger.Name)
				trigger.Delay = 0
			}
			triggers = append(triggers, trigger)
		}
		group.Triggers = triggers
		m.Groups = append(m.Groups, group)
	}
	return nil
}
