package kegtron

import "github.com/fako1024/gatt"

// Passive scanning only, no links are ever established
var (
	defaultBTClientOptions = []gatt.Option{
		gatt.LnxDeviceID(-1, true),
		gatt.LnxMaxConnections(1),
	}
)
