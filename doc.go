/*
Package cfscan discovers Cloudflare edge-network IP addresses that work as
drop-in endpoints for a VLESS or Trojan proxy configuration.

Given one or more IP ranges, a set of SNI hostnames, and a proxy URI
template, the scanner samples random addresses from those ranges and pushes
each through a four-stage validation pipeline:

	Producer → rawQ → TCP stage → tcpQ → TLS stage → tlsQ → Speed stage → xrayQ → Proxy stage → Sink

Addresses that survive every stage are ranked by a quality score and
emitted as rewritten proxy configurations plus a flat list of URIs.

Samplers

GroupSampler and HotRing implement the address-selection half of the
pipeline: drawing from configured CIDR ranges, with a bias toward subnets
that have recently produced a working address.

Codec

ParseURI and SerializeURI translate between vless:// / trojan:// links and
the structured outbound configuration consumed by the proxy stage.

Pipeline

Pipeline wires the sampler, codec, and probers into the bounded-queue
worker pipeline described above, with pause/resume and a configurable
target-address auto-stop.
*/
package cfscan
