// Package tgui provides small helpers for composing Telegram HTML messages.
//
// Values of type H are already escaped for ParseMode="HTML"; plain strings
// pass through Esc or one of the tag helpers before being joined.
package tgui
