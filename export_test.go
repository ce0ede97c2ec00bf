package dht

import "github.com/Melenium2/dht/internal/kbuckets"

func (d *DHT) Table() *kbuckets.Table {
	return d.table
}
