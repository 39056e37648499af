// Copyright 2024 The CDC Producer Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package config declares the producer's user-visible configuration
// and binds it to command-line flags, following the Bind/Preflight
// split used throughout this system's source-connector configs.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config holds every option recognized by the producer.
type Config struct {
	// Filesystem layout.
	CDCWorkingDir string
	PollInterval  time.Duration
	ErrorReprocessEnabled bool
	NearRealTime  bool

	// Topic naming.
	TopicPrefix string

	// Bus endpoint and auth.
	PulsarServiceURL        string
	PulsarAuthPluginClassName string
	PulsarAuthParams        string

	// TLS.
	SSLKeystorePath            string
	SSLTruststorePassword      string
	SSLTruststoreType          string
	SSLAllowInsecureConnection bool
	SSLHostnameVerificationEnable bool
	SSLProvider                string
	SSLCipherSuites            []string
	SSLEnabledProtocols        []string

	// Operability.
	BindAddr string

	cipherSuitesRaw     string
	enabledProtocolsRaw string
}

// Bind registers every flag in Config against flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.CDCWorkingDir, "cdcWorkingDir", "/var/lib/cassandra/cdc_raw",
		"the CDC directory polled for commit log segments; it also holds the offset file, while archives/ and errors/ are its siblings, not subdirectories")
	flags.DurationVar(&c.PollInterval, "cdcDirPollIntervalMs", time.Second,
		"the cadence at which the CDC directory is polled for new segments")
	flags.BoolVar(&c.ErrorReprocessEnabled, "errorCommitLogReprocessEnabled", false,
		"whether errored segments are moved back into the CDC directory on each detector tick")
	flags.BoolVar(&c.NearRealTime, "nearRealTime", false,
		"whether to tail _cdc.idx sidecar files instead of waiting for completed .log segments")

	flags.StringVar(&c.TopicPrefix, "topicPrefix", "",
		"a prefix prepended to '<keyspace>.<table>' to form the topic name")

	flags.StringVar(&c.PulsarServiceURL, "pulsarServiceUrl", "pulsar://localhost:6650",
		"the Pulsar broker service URL")
	flags.StringVar(&c.PulsarAuthPluginClassName, "pulsarAuthPluginClassName", "",
		"the Pulsar client authentication plugin to use")
	flags.StringVar(&c.PulsarAuthParams, "pulsarAuthParams", "",
		"parameters passed to the Pulsar authentication plugin")

	flags.StringVar(&c.SSLKeystorePath, "sslKeystorePath", "", "path to a client TLS keystore")
	flags.StringVar(&c.SSLTruststorePassword, "sslTruststorePassword", "", "password for the TLS truststore")
	flags.StringVar(&c.SSLTruststoreType, "sslTruststoreType", "", "the TLS truststore type")
	flags.BoolVar(&c.SSLAllowInsecureConnection, "sslAllowInsecureConnection", false,
		"allow an unverified TLS connection to the broker")
	flags.BoolVar(&c.SSLHostnameVerificationEnable, "sslHostnameVerificationEnable", true,
		"verify the broker's TLS hostname")
	flags.StringVar(&c.SSLProvider, "sslProvider", "", "the TLS security provider")
	flags.StringVar(&c.cipherSuitesRaw, "sslCipherSuites", "", "a comma-separated list of allowed TLS cipher suites")
	flags.StringVar(&c.enabledProtocolsRaw, "sslEnabledProtocols", "", "a comma-separated list of allowed TLS protocols")

	flags.StringVar(&c.BindAddr, "bindAddr", ":8080", "the network address to bind /healthz and /metrics to")
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Preflight validates the configuration after flags have been parsed
// and splits the comma-separated TLS lists.
func (c *Config) Preflight() error {
	c.SSLCipherSuites = splitNonEmpty(c.cipherSuitesRaw)
	c.SSLEnabledProtocols = splitNonEmpty(c.enabledProtocolsRaw)

	if c.CDCWorkingDir == "" {
		return errors.New("cdcWorkingDir unset")
	}
	if c.PollInterval <= 0 {
		return errors.New("cdcDirPollIntervalMs must be positive")
	}
	if c.PulsarServiceURL == "" {
		return errors.New("pulsarServiceUrl unset")
	}
	if (c.PulsarAuthPluginClassName == "") != (c.PulsarAuthParams == "") {
		return errors.New("pulsarAuthPluginClassName and pulsarAuthParams must be set together")
	}
	return nil
}
