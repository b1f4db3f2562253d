// Package events defines the typed voice pipeline event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - capture.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - pipeline.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in receipt order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current utterance.
//   - Changed: a state flag flipped; carries the new value.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): the provider detected
//     speech activity.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot.
//   - UserTranscriptSegment (user_input.transcript_segment): finalized,
//     append-only transcript segment.
//   - UserTranscriptFinal (user_input.transcript_final): the full utterance,
//     emitted once per utterance end.
//
// capture events
//
//   - CaptureStateChanged (capture.state_changed): capture session moved to a
//     new state.
//   - CaptureConnectionChanged (capture.connection_changed): transcription
//     link opened or closed.
//   - CaptureMuteChanged (capture.mute_changed): capture muted or unmuted.
//   - CaptureVolumeUpdated (capture.volume_updated): input level in [0, 1].
//
// assistant_speech events
//
//   - AssistantSpeechLoadingChanged (assistant_speech.loading_changed):
//     synthesis work started or drained.
//   - AssistantSpeechChunkSynthesized (assistant_speech.chunk_synthesized):
//     all audio for one text chunk was appended to the playback buffer.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): playback began,
//     at most once per playback session.
//   - AssistantPlaybackStateChanged (assistant_playback.state_changed):
//     playback buffer moved to a new state.
//   - AssistantPlaybackEnded (assistant_playback.ended): buffered audio was
//     exhausted after input completed, at most once per playback session.
//
// pipeline events
//
//   - Error (pipeline.error): a device, connection or synthesis failure.
//     Intentional cancellation never produces this event.
package events
