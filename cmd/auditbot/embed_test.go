package main

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestAddEmbedField(t *testing.T) {
	type args struct {
		e      *discordgo.MessageEmbed
		name   string
		value  string
		inline bool
	}
	tests := []struct {
		name string
		args args
		want *discordgo.MessageEmbed
	}{
		{
			name: "valid test",
			args: args{&discordgo.MessageEmbed{}, "name", "value", false},
			want: &discordgo.MessageEmbed{Fields: []*discordgo.MessageEmbedField{{Name: "name", Value: "value", Inline: false}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddEmbedField(tt.args.e, tt.args.name, tt.args.value, tt.args.inline); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AddEmbedField() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMessageFile(t *testing.T) {
	type args struct {
		m        *discordgo.MessageSend
		filename string
		data     []byte
	}
	tests := []struct {
		name string
		args args
		want *discordgo.MessageSend
	}{
		{
			name: "valid test",
			args: args{&discordgo.MessageSend{}, "content.txt", []byte("hello")},
			want: &discordgo.MessageSend{Files: []*discordgo.File{{
				Name:   "content.txt",
				Reader: bytes.NewBuffer([]byte("hello")),
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMessageFile(tt.args.m, tt.args.filename, tt.args.data); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AddMessageFile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddMessageFileString(t *testing.T) {
	type args struct {
		m        *discordgo.MessageSend
		filename string
		data     string
	}
	tests := []struct {
		name string
		args args
		want *discordgo.MessageSend
	}{
		{
			name: "valid test",
			args: args{&discordgo.MessageSend{}, "content.txt", "hello"},
			want: &discordgo.MessageSend{Files: []*discordgo.File{{
				Name:   "content.txt",
				Reader: bytes.NewBuffer([]byte("hello")),
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMessageFileString(tt.args.m, tt.args.filename, tt.args.data); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AddMessageFileString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogEmbed(t *testing.T) {
	type args struct {
		t LogType
		g *discordgo.Guild
	}
	tests := []struct {
		name string
		args args
		want *discordgo.MessageEmbed
	}{
		{
			name: "valid test",
			args: args{GuildJoinType, &discordgo.Guild{Name: "jeff", ID: "1234", Icon: "4321"}},
			want: &discordgo.MessageEmbed{Title: "User joined", Footer: &discordgo.MessageEmbedFooter{Text: "jeff", IconURL: discordgo.EndpointGuildIcon("1234", "4321")}},
		},
		{
			name: "valid test, no guild",
			args: args{GuildJoinType, nil},
			want: &discordgo.MessageEmbed{Title: "User joined", Footer: nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLogEmbed(tt.args.t, tt.args.g)
			if got.Title != tt.want.Title {
				t.Errorf("NewLogEmbed() = %v, want %v", got.Title, tt.want.Title)
			}
			if !reflect.DeepEqual(got.Footer, tt.want.Footer) {
				t.Errorf("NewLogEmbed() = %v, want %v", got.Footer, tt.want.Footer)
			}
		})
	}
}

func TestSetEmbedThumbnail(t *testing.T) {
	type args struct {
		e   *discordgo.MessageEmbed
		url string
	}
	tests := []struct {
		name string
		args args
		want *discordgo.MessageEmbed
	}{
		{
			name: "valid test",
			args: args{&discordgo.MessageEmbed{}, "github.com"},
			want: &discordgo.MessageEmbed{Thumbnail: &discordgo.MessageEmbedThumbnail{URL: "github.com"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SetEmbedThumbnail(tt.args.e, tt.args.url); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SetEmbedThumbnail() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleList(t *testing.T) {
	if got := roleList(nil); got != "None" {
		t.Errorf("roleList(nil) = %v, want None", got)
	}
	if got := roleList(&discordgo.Member{}); got != "None" {
		t.Errorf("roleList(empty) = %v, want None", got)
	}
	if got := roleList(&discordgo.Member{Roles: []string{"1", "2"}}); got != "<@&1>, <@&2>" {
		t.Errorf("roleList() = %v", got)
	}
}
