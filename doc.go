/*
Package dynpatch injects plugin archives into the search list of a running loader, based on [goloader].

# License

Source codes are under Apache License Version 2.0.

# Underwater

 1. A [Loader] resolves symbols by asking its parent first, then the [Elements] of its private path list in order.
 2. [Patcher.Patch] reaches that private list by reflection, opens the plugin archive, wraps it in a new [Element]
    and publishes an extended copy of the list with one atomic swap. Readers see the old list or the new one.
 3. The plugin element is always the last one, symbols of the host win on name collision.
 4. The element layout depends on the platform level: [Modern], [Legacy] or [Earliest].
    The earliest layout is best effort and must be enabled by [Patcher.AllowEarliest].
 5. Opening an archive with [ObjectOpener] serializes its linker into the scratch directory,
    later opens reuse it while it is newer than the archive.

# Notes

 1. Patch before any plugin symbol is looked up. Failures leave the loader unchanged and return a [*PatchError].
 2. Sym must directly fetch and use in code, should not reuse the cast result or the Sym itself.
    But the function result is safe to use for multiple times.
 3. For [goloader]'s limitation, current only exported function can link and use,
    and the host executable must be built with a go sdk prepared for goloader.

# Environment

  - DYNPATCH_PLATFORM_LEVEL: platform level, default 26.
  - DYNPATCH_ALLOW_EARLIEST: enable the earliest element layout.

# Samples

See testdata and tests.

[goloader]: https://github.com/pkujhd/goloader
*/
package dynpatch
