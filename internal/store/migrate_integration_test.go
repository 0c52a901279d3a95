// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/hyperlab/accountd/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(uint(2)))
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Applied).To(Equal([]uint{1, 2}))
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{2}))

		Expect(migrator.Steps(1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
	})

	It("enforces the schema constraints", func(ctx SpecContext) {
		pool, err := store.Connect(ctx, store.PoolConfig{URL: connStr, Attempts: 3, Backoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(ctx, `INSERT INTO accounts (id, username, email, display_name, credential_hash)
			VALUES ('01J0000000000000000000000A', 'Alice', 'a@x.com', 'Alice', 'h')`)
		Expect(err).NotTo(HaveOccurred())

		By("rejecting a case-insensitive duplicate username")
		_, err = pool.Exec(ctx, `INSERT INTO accounts (id, username, email, display_name, credential_hash)
			VALUES ('01J0000000000000000000000B', 'alice', 'b@x.com', 'alice', 'h')`)
		Expect(err).To(HaveOccurred())

		By("rejecting partial reset state")
		_, err = pool.Exec(ctx, `UPDATE accounts SET reset_token_hash = 'h' WHERE id = '01J0000000000000000000000A'`)
		Expect(err).To(HaveOccurred())

		By("rejecting an empty credential hash")
		_, err = pool.Exec(ctx, `UPDATE accounts SET credential_hash = '' WHERE id = '01J0000000000000000000000A'`)
		Expect(err).To(HaveOccurred())
	}, SpecTimeout(30*time.Second))

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(1)).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(migrator.Force(0)).To(Succeed())
	})
})

var _ = Describe("Connect", func() {
	It("fails after the configured attempts", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := store.Connect(ctx, store.PoolConfig{
			URL:      "postgres://nobody:x@127.0.0.1:1/none?sslmode=disable&connect_timeout=1",
			Attempts: 2,
			Backoff:  10 * time.Millisecond,
		})
		Expect(err).To(HaveOccurred())
	})
})
