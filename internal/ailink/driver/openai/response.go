package openai

import (
	"github.com/writify/writify/internal/ailink/content"
	"github.com/writify/writify/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &driver.ProviderError{Provider: "openai", Kind: driver.KindEmpty, Message: "empty response choices"}
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" || choice.FinishReason == "content_filter" {
		msg := choice.Message.Refusal
		if msg == "" {
			msg = "response withheld by content filter"
		}
		return nil, &driver.ProviderError{Provider: "openai", Kind: driver.KindRefused, Message: msg}
	}

	response := &driver.Response{
		Content:      []content.ContentBlock{{Type: content.ContentTypeText, Text: choice.Message.Content}},
		FinishReason: choice.FinishReason,
	}

	if resp.Usage != nil {
		response.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return response, nil
}
