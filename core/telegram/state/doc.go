// Package state provides a per-user session store for Telegram conversations.
// It is domain-agnostic: bots supply the session type and its constructor.
// Mutations for one user are serialized; different users never contend.
package state
