package slackapp

import (
	"github.com/shawn/slack-gpt-tenancy/internal/dialog"
	"github.com/slack-go/slack"
)

// Home tab texts.
const (
	ReadyMessage = "This app is ready to use in this workspace :raised_hands:"
	SetupMessage = "To enable this app in this Slack workspace, you need to save your OpenAI API key. " +
		"Visit <https://platform.openai.com/account/api-keys|your developer page> to grab your key!"
	ConfigureLabel = "Configure"
)

// HomeTab builds the App Home view. The configure button is shown only
// where tenants manage their own credential.
func HomeTab(message, configureLabel string, withConfigure bool) slack.HomeTabViewRequest {
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, message, false, false), nil, nil),
	}
	if withConfigure {
		button := slack.NewButtonBlockElement(
			dialog.ActionConfigure, "",
			slack.NewTextBlockObject(slack.PlainTextType, configureLabel, false, false),
		)
		blocks = append(blocks, slack.NewActionBlock("configure", button))
	}
	return slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
}
