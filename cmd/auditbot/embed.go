package main

import (
	"bytes"

	"github.com/bwmarrin/discordgo"
)

type Color int

const (
	ColorRed    Color = 0xC80000
	ColorOrange Color = 0xF08152
	ColorBlue   Color = 0x61D1ED
	ColorGreen  Color = 0x00C800
	ColorWhite  Color = 0xFFFFFF
)

type LogType int

const (
	GuildJoinType LogType = iota
	GuildLeaveType
	GuildBanType
	GuildUnbanType
	MsgDeleteType
	MsgEditType
)

var logTitles = map[LogType]string{
	GuildJoinType:  "User joined",
	GuildLeaveType: "User left or kicked",
	GuildBanType:   "User banned",
	GuildUnbanType: "User unbanned",
	MsgDeleteType:  "Message deleted",
	MsgEditType:    "Message edited",
}

var logColors = map[LogType]Color{
	GuildJoinType:  ColorBlue,
	GuildLeaveType: ColorOrange,
	GuildBanType:   ColorRed,
	GuildUnbanType: ColorGreen,
	MsgDeleteType:  ColorWhite,
	MsgEditType:    ColorBlue,
}

// NewLogEmbed starts an embed for a log type, with the guild in the footer
// when one is in scope.
func NewLogEmbed(t LogType, g *discordgo.Guild) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title: logTitles[t],
		Color: int(logColors[t]),
	}
	if g != nil {
		e.Footer = &discordgo.MessageEmbedFooter{
			Text:    g.Name,
			IconURL: discordgo.EndpointGuildIcon(g.ID, g.Icon),
		}
	}
	return e
}

func AddEmbedField(e *discordgo.MessageEmbed, name, value string, inline bool) *discordgo.MessageEmbed {
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline})
	return e
}

func SetEmbedThumbnail(e *discordgo.MessageEmbed, url string) *discordgo.MessageEmbed {
	e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: url}
	return e
}

func AddMessageFile(m *discordgo.MessageSend, filename string, data []byte) *discordgo.MessageSend {
	m.Files = append(m.Files, &discordgo.File{
		Name:   filename,
		Reader: bytes.NewBuffer(data),
	})
	return m
}

func AddMessageFileString(m *discordgo.MessageSend, filename string, data string) *discordgo.MessageSend {
	return AddMessageFile(m, filename, []byte(data))
}
