// Package mqtt wraps paho.mqtt.golang into the core's broker connection.
//
// SISEOA uses MQTT as both the message bus and the shared real-time store.
// Device controllers listen on channel command topics; the core keeps
// retained status and lock topics current, so any client reading the
// broker sees the live state of the installation.
//
//	SISEOA core ↔ MQTT broker ↔ device controllers / remote clients
//
// The wrapper adds what the raw paho client lacks for this use: tracked
// subscriptions restored on reconnect, panic-isolated handlers, an LWT
// that flips the retained system status to offline on a crash, and the
// Topics builder for the siseoa/ hierarchy.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceIntents(), 1,
//	    func(topic string, payload []byte) error {
//	        ...
//	        return nil
//	    })
//
// TLS with broker credentials is expected in production; anonymous
// plaintext is for local development only.
package mqtt
