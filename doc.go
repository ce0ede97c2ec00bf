// Package dht implement Kademlia DHT protocol.
//
// Kademlia is a communications protocol for peer-to-peer networks.
// It is one of many versions of a DHT, a Distributed Hash Table.
//
// Every node keeps routing table of k-buckets, bucket with index i holds
// nodes which share exactly i leading bits with the local node. Nodes are
// found by iterative lookup, which asks the closest known nodes for even
// closer ones until no progress is made. Values are stored at the closest
// nodes to the key.
//
// DHT does not depend on the transport. Transport of this package sends
// packets over UDP, any other implementation of Client works as well.
//
//	udp, _ := net.ListenUDP("udp", addr)
//	id, _ := dht.GenerateID(dht.IDBits)
//	transport := dht.NewTransport(udp, id, nil)
//
//	d, _ := dht.New(transport.Self(), transport)
//	go transport.Loop(ctx, d.Handler())
//	go d.Maintenance(ctx)
//
//	_ = d.Bootstrap(ctx, seeds)
package dht
