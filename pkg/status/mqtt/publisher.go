package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/sockbridge/pkg/config"
	"github.com/robotalks/sockbridge/pkg/status"
)

// Topic suffixes under <prefix><id>/.
const (
	EventTopic = "event"
	LEDTopic   = "led"
)

const appID = "sockbridge"

// DefaultClientID derives a stable identity from the machine id.
func DefaultClientID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return appID
	}
	if len(id) > 16 {
		id = id[:16]
	}
	return appID + "-" + id
}

// Publisher abstracts the publishing side of Queue.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// LEDState is the retained payload on the led topic.
type LEDState struct {
	Active bool   `json:"active"`
	Color  string `json:"color"`
}

// Reporter publishes connection events and the indicator state.
// It implements both status.Sink and status.Indicator.
type Reporter struct {
	Publisher Publisher
	ID        string
	Color     config.Color
	Marker    string

	lock   sync.Mutex
	active bool
}

// NewReporter creates a Reporter.
func NewReporter(pub Publisher, id string, color config.Color) *Reporter {
	return &Reporter{Publisher: pub, ID: id, Color: color, Marker: status.DefaultMarker}
}

func (r *Reporter) topic(name string) string {
	if r.ID == "" {
		return name
	}
	return r.ID + "/" + name
}

// LEDTopicName returns the led topic without the queue prefix.
func (r *Reporter) LEDTopicName() string {
	return r.topic(LEDTopic)
}

// Report implements status.Sink.
func (r *Reporter) Report(e status.Event) {
	r.Publisher.PubWith(r.topic(EventTopic), []byte(e.Sentence(r.Marker)), 1, false)
}

// SetActive implements status.Indicator.
func (r *Reporter) SetActive(active bool) {
	r.lock.Lock()
	r.active = active
	r.lock.Unlock()
	r.publishLED(active)
}

// Republish sends the last indicator state again, e.g. after reconnecting
// to the broker.
func (r *Reporter) Republish() {
	r.lock.Lock()
	active := r.active
	r.lock.Unlock()
	r.publishLED(active)
}

func (r *Reporter) publishLED(active bool) {
	r.Publisher.PubWith(r.topic(LEDTopic), r.ledPayload(active), 1, true)
}

func (r *Reporter) ledPayload(active bool) []byte {
	payload, err := json.Marshal(&LEDState{Active: active, Color: r.Color.String()})
	if err != nil {
		// never fails for this struct
		panic(err)
	}
	return payload
}

// SetupWill registers an inactive led state as the client's last will.
// opts must carry a queue with the prefix topicPrefix.
func (r *Reporter) SetupWill(opts *paho.ClientOptions, topicPrefix string) {
	opts.SetBinaryWill(topicPrefix+r.LEDTopicName(), r.ledPayload(false), 1, true)
}
