// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/auth/postgres"
)

var _ = Describe("AccountStore", func() {
	var (
		ctx   context.Context
		store *postgres.AccountStore
		now   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = postgres.NewAccountStore(testPool)
		now = time.Now().UTC().Truncate(time.Microsecond)
		_, err := testPool.Exec(ctx, `TRUNCATE accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	newAccount := func(username, email string, created time.Time) *auth.Account {
		a, err := auth.NewAccount(username, email, "$2a$04$stored", created)
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	Describe("Create", func() {
		It("round-trips an account", func() {
			a := newAccount("alice", "a@x.com", now)
			Expect(store.Create(ctx, a)).To(Succeed())

			got, err := store.FindByID(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Username).To(Equal("alice"))
			Expect(got.Email).To(Equal("a@x.com"))
			Expect(got.CredentialHash).To(Equal("$2a$04$stored"))
			Expect(got.CreatedAt).To(BeTemporally("==", now))
			Expect(got.Reset).To(BeNil())
		})

		It("rejects usernames differing only in case", func() {
			Expect(store.Create(ctx, newAccount("alice", "a@x.com", now))).To(Succeed())
			err := store.Create(ctx, newAccount("ALICE", "b@x.com", now))
			Expect(err).To(MatchError(auth.ErrDuplicateIdentity))
		})

		It("admits exactly one of many concurrent duplicates", func() {
			var (
				wg        sync.WaitGroup
				successes atomic.Int32
			)
			for range 16 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if store.Create(ctx, newAccount("racer", "r@x.com", now)) == nil {
						successes.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(successes.Load()).To(Equal(int32(1)))
		})
	})

	Describe("lookups", func() {
		It("matches usernames case-insensitively", func() {
			a := newAccount("Alice", "a@x.com", now)
			Expect(store.Create(ctx, a)).To(Succeed())

			got, err := store.FindByUsername(ctx, "aLiCe")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(a.ID))
		})

		It("returns the oldest account sharing an email", func() {
			older := newAccount("older", "shared@x.com", now.Add(-time.Hour))
			newer := newAccount("newer", "shared@x.com", now)
			Expect(store.Create(ctx, newer)).To(Succeed())
			Expect(store.Create(ctx, older)).To(Succeed())

			got, err := store.FindByEmail(ctx, "Shared@X.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(older.ID))
		})

		It("reports missing accounts as not found", func() {
			_, err := store.FindByID(ctx, ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))
			_, err = store.FindByEmail(ctx, "nobody@x.com")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})

	Describe("Update", func() {
		var a *auth.Account

		BeforeEach(func() {
			a = newAccount("alice", "a@x.com", now)
			Expect(store.Create(ctx, a)).To(Succeed())
		})

		It("changes only the patched fields", func() {
			name := "Alice L."
			later := now.Add(time.Minute)
			got, err := store.Update(ctx, a.ID, auth.AccountPatch{DisplayName: &name, UpdatedAt: later})
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DisplayName).To(Equal(name))
			Expect(got.Email).To(Equal("a@x.com"))
			Expect(got.CredentialHash).To(Equal("$2a$04$stored"))
			Expect(got.UpdatedAt).To(BeTemporally("==", later))
		})

		It("stores and finds a pending reset until it expires", func() {
			reset := &auth.PendingReset{TokenHash: "$2a$04$token", Lookup: "digest", ExpiresAt: now.Add(time.Hour)}
			_, err := store.Update(ctx, a.ID, auth.AccountPatch{SetReset: reset, UpdatedAt: now})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.FindByValidResetToken(ctx, "digest", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Reset).NotTo(BeNil())
			Expect(got.Reset.TokenHash).To(Equal("$2a$04$token"))

			_, err = store.FindByValidResetToken(ctx, "digest", now.Add(time.Hour))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lets exactly one guarded redemption win", func() {
			reset := &auth.PendingReset{TokenHash: "$2a$04$token", Lookup: "digest", ExpiresAt: now.Add(time.Hour)}
			_, err := store.Update(ctx, a.ID, auth.AccountPatch{SetReset: reset, UpdatedAt: now})
			Expect(err).NotTo(HaveOccurred())

			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					hash := "$2a$04$new"
					_, err := store.Update(ctx, a.ID, auth.AccountPatch{
						CredentialHash: &hash,
						ClearReset:     true,
						UpdatedAt:      now,
						Guard:          &auth.ResetGuard{Lookup: "digest", Now: now},
					})
					if err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(wins.Load()).To(Equal(int32(1)))

			got, err := store.FindByID(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Reset).To(BeNil())
			Expect(got.CredentialHash).To(Equal("$2a$04$new"))
		})

		It("reports an unknown id as not found", func() {
			_, err := store.Update(ctx, ulid.Make(), auth.AccountPatch{UpdatedAt: now})
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
