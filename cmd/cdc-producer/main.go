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

// Command cdc-producer tails a Cassandra-compatible commit-log
// directory and publishes row-level mutations to a Pulsar topic per
// table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/config"
	"github.com/cassandra-cdc/cdc-pulsar-producer/internal/types"
	"github.com/spf13/pflag"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("cdc-producer exited with an error")
	}
}

func run() error {
	cfg := &config.Config{}
	flags := pflag.NewFlagSet("cdc-producer", pflag.ExitOnError)
	cfg.Bind(flags)

	var logLevel string
	var clusterName, nodeUUID string
	var protocolVersion int
	flags.StringVar(&logLevel, "logLevel", "info", "the logrus level to log at")
	flags.StringVar(&clusterName, "clusterName", "", "the source database cluster name attached to every published mutation")
	flags.StringVar(&nodeUUID, "nodeUuid", "", "the source database node uuid attached to every published mutation")
	flags.IntVar(&protocolVersion, "protocolVersion", 0, "the commit log reader's native protocol version, used for digest serialization")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Preflight(); err != nil {
		return err
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newExternalParser()
	if err != nil {
		return err
	}

	source := types.SourceInfo{ClusterName: clusterName, NodeUUID: nodeUUID}
	producer, cleanup, err := Start(ctx, cfg, p, source, protocolVersion)
	if err != nil {
		return err
	}
	defer cleanup()

	log.WithFields(log.Fields{
		"cdcWorkingDir": cfg.CDCWorkingDir,
		"bindAddr":      cfg.BindAddr,
	}).Info("cdc-producer started")

	<-ctx.Done()
	log.Info("shutdown signal received, draining workers")

	if err := producer.Stopper.Stop(30 * time.Second); err != nil {
		return fmt.Errorf("worker shutdown: %w", err)
	}
	return nil
}
