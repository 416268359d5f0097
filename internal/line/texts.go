package line

import "fmt"

// Reply texts for the webhook conversation. The bot only ever handles the
// linking exchange, so the catalogue stays small.

func welcomeText(displayName string) string {
	return fmt.Sprintf(`こんにちは、%sさん！🏃

Running Trackerの公式アカウントを友だち追加いただき、ありがとうございます！

【次のステップ】
1. Running Trackerアプリを開く
2. 「スケジュール」→「設定」タブ
3. 「LINE連携」セクションで「連携コードを生成」をタップ
4. 表示された8桁のコードをこのトークに送信

連携が完了すると、ランニングのリマインダーをお届けします💪`, displayName)
}

const helpText = `連携するには、アプリで生成した8桁の連携コードを送信してください。

例: AB23CD45

アプリで連携コードを生成できない場合は、以下を確認してください：
• アプリにログインしている
• 「スケジュール」→「設定」タブを開いている
• 「連携コードを生成」ボタンをタップ`

const (
	codeNotFoundText = "❌ 連携コードが見つかりませんでした。\n\nアプリで新しいコードを生成してください。"
	codeExpiredText  = "⏰ 連携コードの有効期限が切れています。\n\nアプリで新しいコードを生成してください。"
	codeUsedText     = "❌ この連携コードは既に使用されています。\n\nアプリで新しいコードを生成してください。"
	internalErrText  = "❌ エラーが発生しました。しばらくしてから再度お試しください。"
)

func linkedText(displayName string) string {
	return fmt.Sprintf(`✅ 連携が完了しました！

%sさんのアカウントとRunning Trackerが連携されました。

これから、スケジュールしたランニングの開始前にリマインダーをお届けします🏃‍♂️

【通知設定の変更】
アプリの「スケジュール」→「設定」タブで、通知のタイミングやON/OFFを変更できます。

それでは、良いランニングライフを！💪`, displayName)
}
